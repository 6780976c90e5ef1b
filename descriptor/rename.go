package descriptor

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// RenameRule is a container-level case transform applied to field and
// variant names.
type RenameRule string

const (
	RenameNone           RenameRule = ""
	RenameLower          RenameRule = "lowercase"
	RenameUpper          RenameRule = "UPPERCASE"
	RenameCamel          RenameRule = "camelCase"
	RenamePascal         RenameRule = "PascalCase"
	RenameSnake          RenameRule = "snake_case"
	RenameScreamingSnake RenameRule = "SCREAMING_SNAKE_CASE"
	RenameKebab          RenameRule = "kebab-case"
	RenameScreamingKebab RenameRule = "SCREAMING-KEBAB-CASE"
)

// ParseRenameRule accepts the canonical rule names. "identity" and "" map to
// RenameNone.
func ParseRenameRule(s string) (RenameRule, error) {
	switch r := RenameRule(s); r {
	case RenameNone, RenameLower, RenameUpper, RenameCamel, RenamePascal,
		RenameSnake, RenameScreamingSnake, RenameKebab, RenameScreamingKebab:
		return r, nil
	}
	if s == "identity" {
		return RenameNone, nil
	}
	return RenameNone, fmt.Errorf("unknown rename rule %q", s)
}

// Apply transforms name. Words split on '_', '-', spaces, case transitions
// and digit runs. Camel and Pascal go through snake case first so acronyms
// keep their word boundary. Unknown rules leave the name unchanged.
func (r RenameRule) Apply(name string) string {
	switch r {
	case RenameLower:
		return strings.ToLower(name)
	case RenameUpper:
		return strings.ToUpper(name)
	case RenameCamel:
		return strcase.ToLowerCamel(strcase.ToSnake(name))
	case RenamePascal:
		return strcase.ToCamel(strcase.ToSnake(name))
	case RenameSnake:
		return strcase.ToSnake(name)
	case RenameScreamingSnake:
		return strcase.ToScreamingSnake(name)
	case RenameKebab:
		return strcase.ToKebab(name)
	case RenameScreamingKebab:
		return strcase.ToScreamingKebab(name)
	}
	return name
}
