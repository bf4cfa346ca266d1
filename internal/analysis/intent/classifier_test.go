package intent

import "testing"

func TestClassifyIntroductionTriggers(t *testing.T) {
	for _, text := range []string{"你是誰", "請自我介紹一下", "可以介紹你自己嗎？你是誰"} {
		got := Classify(text)
		if got.Kind != Introduction {
			t.Fatalf("Classify(%q) = %s, want introduction", text, got.Kind)
		}
		if got.Text != "" {
			t.Fatalf("introduction intent should not carry text, got %q", got.Text)
		}
	}
}

func TestClassifyQueryKeepsText(t *testing.T) {
	got := Classify("糖化血色素多少算正常？")
	if got.Kind != Query {
		t.Fatalf("expected query, got %s", got.Kind)
	}
	if got.Text != "糖化血色素多少算正常？" {
		t.Fatalf("unexpected query text: %q", got.Text)
	}
}

func TestClassifyIsCaseSensitive(t *testing.T) {
	classifier := NewClassifier([]string{"Who are you"})

	if got := classifier.Classify("who are you"); got.Kind != Query {
		t.Fatalf("expected case-sensitive miss, got %s", got.Kind)
	}
	if got := classifier.Classify("Who are you?"); got.Kind != Introduction {
		t.Fatalf("expected introduction, got %s", got.Kind)
	}
}

func TestNewClassifierIgnoresEmptyTriggers(t *testing.T) {
	classifier := NewClassifier([]string{"", "介紹"})

	if got := classifier.Classify("血糖太高怎麼辦"); got.Kind != Query {
		t.Fatalf("empty trigger must not match everything, got %s", got.Kind)
	}
	if triggers := classifier.Triggers(); len(triggers) != 1 {
		t.Fatalf("unexpected triggers: %v", triggers)
	}
}

func TestClassifierWithoutTriggersAlwaysQueries(t *testing.T) {
	classifier := NewClassifier(nil)
	if got := classifier.Classify("你是誰"); got.Kind != Query {
		t.Fatalf("expected query, got %s", got.Kind)
	}
}
