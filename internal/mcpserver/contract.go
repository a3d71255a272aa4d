package mcpserver

// ContactFormatContract describes the canonical contact note format that
// LLM consumers should follow when creating or updating contact notes.
const ContactFormatContract = `# Othala Contact Note Format Contract

Every contact note stored in Othala MUST follow this structure.

## Structure

` + "```" + `markdown
---
UID: 9f2c1e4a-...                   # OPTIONAL – stable identifier (UUID preferred)
FN: Jane Doe                        # REQUIRED – display name (vCard FN)
GENDER: F                           # OPTIONAL – M, F, NB, or U
REV: 20250115T120000Z               # MANAGED – revision stamp, do not edit
RELATED[friend]: "name:Bob Smith"   # OPTIONAL – relationship entries, see below
RELATED[1:friend]: "uid:bob-2"      # additional entries of the same kind
---

# Jane Doe

Free-form Markdown body.

## Related
- friend [[Bob Smith]]
- mother [[Ann Doe]]
` + "```" + `

## Relationship keys

1. The first entry of a kind uses ` + "`" + `RELATED[kind]` + "`" + `; additional entries use
   ` + "`" + `RELATED[1:kind]` + "`" + `, ` + "`" + `RELATED[2:kind]` + "`" + `, ... with no gaps.
2. Values are namespaced references:
   ` + "`" + `urn:uuid:<uuid>` + "`" + ` | ` + "`" + `uid:<identifier>` + "`" + ` | ` + "`" + `name:<DisplayName>` + "`" + `.
3. Kinds are one of: parent, child, sibling, spouse, partner, friend,
   colleague, relative, auncle, nibling, grandparent, grandchild, cousin.
   Gendered terms (mother, father, son, aunt, grandpa, ...) are accepted and
   normalized to the canonical kind.
4. Legacy read-only forms ` + "`" + `RELATED;TYPE=kind` + "`" + ` and ` + "`" + `RELATED.kind` + "`" + ` are
   accepted and rewritten to bracket form on the next sync.

## Related section

1. The heading is ` + "`" + `## Related` + "`" + ` (any depth and case are accepted on read).
2. Each line is ` + "`" + `- <kind> [[Contact Name]]` + "`" + ` or ` + "`" + `- <kind> Plain Name` + "`" + `.
3. The sync engine keeps this list and the RELATED* keys consistent and
   materializes the reciprocal relationship on the other contact
   (listing Bob as parent gives Bob a child entry back).

## Rules

1. **YAML frontmatter fences** (` + "`" + `---` + "`" + `) must be the first thing in the file.
2. **FN is the primary display name**; when absent, the first H1 heading or
   the filename stem is used.
3. **Never write blank relationship values** (` + "`" + `""` + "`" + `, ` + "`" + `null` + "`" + `, ` + "`" + `undefined` + "`" + `);
   they are rejected.
4. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
5. **Encoding** is UTF-8 with a trailing newline.
`
