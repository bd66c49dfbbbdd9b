package script

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const testCTA = "Don't forget to like, comment, and subscribe for more lost futures!"

func TestPostProcess(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "markdown and labels",
			in:   "# Project Orion\n\n**HOOK:** Imagine *atomic* bombs pushing a ship.\n\nCONCLUSION: It never flew.",
			want: "Project Orion\n\nImagine atomic bombs pushing a ship.\n\nIt never flew.\n\n" + testCTA,
		},
		{
			name: "stage directions and blank lines",
			in:   "Title: Orion\nThe plan was real. [dramatic music]\n\n\n\n(pause) Then it died.",
			want: "The plan was real.\n\nThen it died.\n\n" + testCTA,
		},
		{
			name: "unicode punctuation",
			in:   "Dyson’s team – the “dreamers” — waited… \U0001F680",
			want: "Dyson's team - the \"dreamers\" -- waited...\n\n" + testCTA,
		},
		{
			name: "turkish letters kept",
			in:   "Çağrı Öztürk ılık şüphe İstanbul'da.",
			want: "Çağrı Öztürk ılık şüphe İstanbul'da.\n\n" + testCTA,
		},
		{
			name: "cta already present",
			in:   "Short story.\n\n" + strings.ToUpper(testCTA),
			want: "Short story.\n\n" + strings.ToUpper(testCTA),
		},
		{
			name: "lists flattened",
			in:   "- first point\n- second point",
			want: "first point\n\nsecond point\n\n" + testCTA,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := PostProcess(c.in, testCTA)
			if got != c.want {
				t.Errorf("PostProcess(%q)\n got: %q\nwant: %q", c.in, got, c.want)
			}
		})
	}
}

func TestPostProcessEmptyInputYieldsCTA(t *testing.T) {
	if got := PostProcess("   \n\n", testCTA); got != testCTA {
		t.Errorf("got %q, want bare CTA", got)
	}
}

func TestFitKeepsCallToAction(t *testing.T) {
	body := strings.Repeat("The engineers ran the numbers again. ", 60)
	text := body + "\n\n" + testCTA

	for _, budget := range []int{1000, 300, 120, len(testCTA) + 3} {
		got := Fit(text, testCTA, budget)
		if n := utf8.RuneCountInString(got); n > budget {
			t.Errorf("budget %d: got %d chars", budget, n)
		}
		if !strings.HasSuffix(got, testCTA) {
			t.Errorf("budget %d: CTA lost: %q", budget, got)
		}
	}
}

func TestFitUnderBudgetUnchanged(t *testing.T) {
	text := "Short.\n\n" + testCTA
	if got := Fit(text, testCTA, 1000); got != text {
		t.Errorf("Fit changed text under budget: %q", got)
	}
}

func TestFitCutsAtWordBoundary(t *testing.T) {
	got := Fit("alpha beta gamma delta epsilon zeta eta theta", "", 20)
	if got != "alpha beta gamma" {
		t.Errorf("got %q", got)
	}
}

func TestFitTinyBudget(t *testing.T) {
	got := Fit(strings.Repeat("x ", 100), testCTA, 10)
	if utf8.RuneCountInString(got) > 10 {
		t.Errorf("got %d chars over budget 10", utf8.RuneCountInString(got))
	}
}
