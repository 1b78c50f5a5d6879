// Package iconhint derives a notification icon from a reminder title.
// Presentation only: nothing in here touches scheduling state.
package iconhint

import "strings"

// Hint names an icon in the client's icon set.
type Hint string

const (
	Default    Hint = "notifications"
	Water      Hint = "water"
	Sleep      Hint = "moon"
	Meditation Hint = "leaf"
	Break      Hint = "cafe"
	Gratitude  Hint = "heart"
	Mood       Hint = "happy"
)

// Titles are user-typed Portuguese free text, so matching is by lowercase
// substring, accented and plain spellings both listed.
var keywords = []struct {
	substr string
	hint   Hint
}{
	{"água", Water},
	{"agua", Water},
	{"beber", Water},
	{"hidrat", Water},
	{"dormir", Sleep},
	{"sono", Sleep},
	{"medita", Meditation},
	{"respira", Meditation},
	{"pausa", Break},
	{"descanso", Break},
	{"alongar", Break},
	{"gratidão", Gratitude},
	{"gratidao", Gratitude},
	{"humor", Mood},
	{"emoç", Mood},
	{"emoc", Mood},
	{"sentimento", Mood},
}

// ForTitle picks an icon for a reminder title. First keyword wins; titles
// matching nothing get Default.
func ForTitle(title string) Hint {
	t := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(t, kw.substr) {
			return kw.hint
		}
	}
	return Default
}
