package hotkey

import (
	"fmt"
	"strings"
)

// modifier aliases map to a canonical name and a fixed sort rank.
var modifiers = map[string]struct {
	name string
	rank int
}{
	"control":          {"control", 0},
	"ctrl":             {"control", 0},
	"commandorcontrol": {"control", 0},
	"alt":              {"alt", 1},
	"option":           {"alt", 1},
	"shift":            {"shift", 2},
	"super":            {"super", 3},
	"meta":             {"super", 3},
	"cmd":              {"super", 3},
	"command":          {"super", 3},
}

// keyAliases folds alternate spellings of common keys.
var keyAliases = map[string]string{
	"right":  "arrowright",
	"left":   "arrowleft",
	"up":     "arrowup",
	"down":   "arrowdown",
	"return": "enter",
	"\\":     "backslash",
	"esc":    "escape",
}

// Normalize returns the canonical form of an accelerator such as
// "Control+Alt+ArrowRight": lower case, modifiers deduplicated and ordered
// control, alt, shift, super, followed by exactly one key.
func Normalize(accel string) (string, error) {
	parts := strings.Split(accel, "+")
	// A trailing "+" names the plus key itself.
	if strings.HasSuffix(accel, "++") {
		parts = append(parts[:len(parts)-2], "plus")
	}

	var mods [4]string
	key := ""
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidAccelerator, accel)
		}
		if m, ok := modifiers[p]; ok {
			mods[m.rank] = m.name
			continue
		}
		if key != "" {
			return "", fmt.Errorf("%w: %q has more than one key", ErrInvalidAccelerator, accel)
		}
		if alias, ok := keyAliases[p]; ok {
			p = alias
		}
		key = p
	}
	if key == "" {
		return "", fmt.Errorf("%w: %q has no key", ErrInvalidAccelerator, accel)
	}

	out := make([]string, 0, 5)
	for _, m := range mods {
		if m != "" {
			out = append(out, m)
		}
	}
	return strings.Join(append(out, key), "+"), nil
}
