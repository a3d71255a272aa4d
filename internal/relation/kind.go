// Package relation defines the closed vocabulary of relationship kinds,
// their gendered surface forms, and the reciprocal mapping between them.
package relation

import (
	"strings"

	"github.com/starford/othala/internal/models"
)

// Kind is a canonical, genderless relationship category.
type Kind string

// The closed set of relationship kinds.
const (
	Parent      Kind = "parent"
	Child       Kind = "child"
	Sibling     Kind = "sibling"
	Spouse      Kind = "spouse"
	Partner     Kind = "partner"
	Friend      Kind = "friend"
	Colleague   Kind = "colleague"
	Relative    Kind = "relative"
	Auncle      Kind = "auncle"
	Nibling     Kind = "nibling"
	Grandparent Kind = "grandparent"
	Grandchild  Kind = "grandchild"
	Cousin      Kind = "cousin"
)

// surface maps a gendered or colloquial term to its canonical kind and
// the gender it implies. This is a data table, not a switch: colloquial
// terms ("dad", "mommy") have the same status as formal ones.
type surface struct {
	kind   Kind
	gender models.Gender
}

var surfaces = map[string]surface{
	"father":        {Parent, models.GenderMale},
	"dad":           {Parent, models.GenderMale},
	"daddy":         {Parent, models.GenderMale},
	"papa":          {Parent, models.GenderMale},
	"mother":        {Parent, models.GenderFemale},
	"mom":           {Parent, models.GenderFemale},
	"mommy":         {Parent, models.GenderFemale},
	"mum":           {Parent, models.GenderFemale},
	"mama":          {Parent, models.GenderFemale},
	"son":           {Child, models.GenderMale},
	"daughter":      {Child, models.GenderFemale},
	"brother":       {Sibling, models.GenderMale},
	"sister":        {Sibling, models.GenderFemale},
	"husband":       {Spouse, models.GenderMale},
	"wife":          {Spouse, models.GenderFemale},
	"boyfriend":     {Partner, models.GenderMale},
	"girlfriend":    {Partner, models.GenderFemale},
	"uncle":         {Auncle, models.GenderMale},
	"aunt":          {Auncle, models.GenderFemale},
	"auntie":        {Auncle, models.GenderFemale},
	"nephew":        {Nibling, models.GenderMale},
	"niece":         {Nibling, models.GenderFemale},
	"grandfather":   {Grandparent, models.GenderMale},
	"grandpa":       {Grandparent, models.GenderMale},
	"granddad":      {Grandparent, models.GenderMale},
	"grandmother":   {Grandparent, models.GenderFemale},
	"grandma":       {Grandparent, models.GenderFemale},
	"granny":        {Grandparent, models.GenderFemale},
	"grandson":      {Grandchild, models.GenderMale},
	"granddaughter": {Grandchild, models.GenderFemale},
}

// reciprocals maps each kind to the kind expected on the opposite-direction
// edge. Symmetric kinds map to themselves.
var reciprocals = map[Kind]Kind{
	Parent:      Child,
	Child:       Parent,
	Auncle:      Nibling,
	Nibling:     Auncle,
	Grandparent: Grandchild,
	Grandchild:  Grandparent,
	Sibling:     Sibling,
	Spouse:      Spouse,
	Partner:     Partner,
	Friend:      Friend,
	Colleague:   Colleague,
	Relative:    Relative,
	Cousin:      Cousin,
}

// genderedForms maps a kind to its preferred surface form per gender.
var genderedForms = map[Kind]map[models.Gender]string{
	Parent:      {models.GenderMale: "father", models.GenderFemale: "mother"},
	Child:       {models.GenderMale: "son", models.GenderFemale: "daughter"},
	Sibling:     {models.GenderMale: "brother", models.GenderFemale: "sister"},
	Spouse:      {models.GenderMale: "husband", models.GenderFemale: "wife"},
	Auncle:      {models.GenderMale: "uncle", models.GenderFemale: "aunt"},
	Nibling:     {models.GenderMale: "nephew", models.GenderFemale: "niece"},
	Grandparent: {models.GenderMale: "grandfather", models.GenderFemale: "grandmother"},
	Grandchild:  {models.GenderMale: "grandson", models.GenderFemale: "granddaughter"},
}

// BaseKind maps any surface term (gendered, colloquial, or already
// canonical) to its canonical kind. Matching is case-insensitive and
// ignores surrounding whitespace. Unknown terms pass through unchanged so
// that custom kinds degrade gracefully instead of erroring.
func BaseKind(term string) Kind {
	t := strings.ToLower(strings.TrimSpace(term))
	if s, ok := surfaces[t]; ok {
		return s.kind
	}
	return Kind(t)
}

// GenderedForm returns the surface form of kind for the given gender, or
// the canonical kind name itself when no gendered variant exists.
func GenderedForm(kind Kind, gender models.Gender) string {
	if forms, ok := genderedForms[kind]; ok {
		if f, ok := forms[gender]; ok {
			return f
		}
	}
	return string(kind)
}

// ReciprocalOf returns the kind expected on the reverse edge. The second
// return is false for kinds outside the closed set, which have no defined
// reciprocal.
func ReciprocalOf(kind Kind) (Kind, bool) {
	r, ok := reciprocals[kind]
	return r, ok
}

// IsSymmetric reports whether kind is its own reciprocal.
func IsSymmetric(kind Kind) bool {
	r, ok := reciprocals[kind]
	return ok && r == kind
}
