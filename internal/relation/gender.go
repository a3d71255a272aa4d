package relation

import (
	"strings"

	"github.com/starford/othala/internal/models"
)

// InferGender returns the gender implied by a relationship term ("uncle"
// implies male, "aunt" female). Genderless terms and the canonical kind
// names themselves imply nothing, in which case the second return is false.
//
// This function never mutates stored data; callers decide whether to apply
// an inferred gender to a contact, and only when that contact currently
// has no recorded gender.
func InferGender(term string) (models.Gender, bool) {
	t := strings.ToLower(strings.TrimSpace(term))
	s, ok := surfaces[t]
	if !ok || s.gender == models.GenderUnset {
		return models.GenderUnset, false
	}
	return s.gender, true
}

// ToGenderless converts any surface term to its canonical genderless kind.
func ToGenderless(term string) Kind {
	return BaseKind(term)
}
