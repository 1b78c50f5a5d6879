package iconhint

import "testing"

func TestForTitle(t *testing.T) {
	tests := []struct {
		title string
		want  Hint
	}{
		{"Beber Água", Water},
		{"beber agua", Water},
		{"Hora de se hidratar!", Water},
		{"Hora de dormir", Sleep},
		{"Sono em dia", Sleep},
		{"Meditação da manhã", Meditation},
		{"Respiração consciente", Meditation},
		{"Pausa para alongar", Break},
		{"Momento de descanso", Break},
		{"Gratidão diária", Gratitude},
		{"Como está seu humor?", Mood},
		{"Registrar emoções", Mood},
		{"Tomar remédio", Default},
		{"", Default},
	}
	for _, tt := range tests {
		if got := ForTitle(tt.title); got != tt.want {
			t.Errorf("ForTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
