package typemodel

import (
	"fmt"
	"strings"

	"github.com/wippyai/typelib/errors"
)

// Separator divides namespace segments in type names. Names are absolute:
// they always start with the separator.
const Separator = "/"

// ValidateName checks that name is a well-formed absolute type name.
// Template brackets must balance; separators inside brackets belong to the
// embedded element name and do not open new segments.
func ValidateName(name string) error {
	if name == "" {
		return errors.BadName(errors.OpValidate, name, "empty name")
	}
	if !strings.HasPrefix(name, Separator) {
		return errors.BadName(errors.OpValidate, name, "name is not absolute")
	}

	depth := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return errors.BadName(errors.OpValidate, name, "unbalanced template brackets")
			}
		case '/':
			if depth == 0 && i+1 < len(name) && name[i+1] == '/' {
				return errors.BadName(errors.OpValidate, name, "empty namespace segment")
			}
		case ' ', '\t', '\n':
			return errors.BadName(errors.OpValidate, name, "whitespace in name")
		}
	}
	if depth != 0 {
		return errors.BadName(errors.OpValidate, name, "unbalanced template brackets")
	}
	return nil
}

// splitPoint returns the index just past the last bracket-depth-zero
// separator, which is where the basename starts.
func splitPoint(name string) int {
	depth := 0
	last := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<':
			depth++
		case '>':
			depth--
		case '/':
			if depth == 0 {
				last = i + 1
			}
		}
	}
	return last
}

// NamespaceOf returns the namespace part of name, including the trailing
// separator: NamespaceOf("/std/vector</double>") is "/std/".
func NamespaceOf(name string) string {
	return name[:splitPoint(name)]
}

// BasenameOf returns the final segment of name, template arguments included.
func BasenameOf(name string) string {
	return name[splitPoint(name):]
}

// PointerName returns the canonical name of a pointer to base.
func PointerName(base string) string {
	return base + "*"
}

// ArrayName returns the canonical name of a count-element array of base.
func ArrayName(base string, count uint32) string {
	return fmt.Sprintf("%s[%d]", base, count)
}

// ContainerName returns the canonical name of a container instance, the
// template name with the element name embedded in brackets.
func ContainerName(kind, elem string) string {
	return kind + "<" + elem + ">"
}
