package vote

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseYen(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"3,000円", 3000, true},
		{"合計 1,234,500円", 1234500, true},
		{"100", 100, true},
		{"円", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseYen(c.text)
		if ok != c.ok || got != c.want {
			t.Errorf("parseYen(%q) = %d,%v want %d,%v", c.text, got, ok, c.want, c.ok)
		}
	}
}

func TestFirstInt(t *testing.T) {
	if n, ok := firstInt("12 取消"); !ok || n != 12 {
		t.Errorf("got %d,%v want 12,true", n, ok)
	}
	if _, ok := firstInt("取消"); ok {
		t.Error("expected no int")
	}
}

func TestRequireOne_TimeoutCarriesCategory(t *testing.T) {
	shortTimeouts(t)
	f := newFakeSurface()

	_, err := requireOne(context.Background(), f, "#missing", CategoryScheduleMismatch, "race grid missing")
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *FlowError
	if !errors.As(err, &fe) || fe.Category != CategoryScheduleMismatch {
		t.Errorf("got %v, want schedule_mismatch", err)
	}
}

func TestRequireOne_FindsLateElement(t *testing.T) {
	shortTimeouts(t)
	f := newFakeSurface()
	polls := 0
	// Wait é o ponto de polling; o elemento aparece na segunda volta.
	surf := &lateSurface{fakeSurface: f, after: 2, query: "#late", polls: &polls}

	el, err := requireOne(context.Background(), surf, "#late", CategoryStructuralDrift, "control missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Query != "#late" {
		t.Errorf("got %v", el)
	}
}

// lateSurface materializa um elemento depois de N chamadas de Wait.
type lateSurface struct {
	*fakeSurface
	after int
	query string
	polls *int
}

func (l *lateSurface) Wait(ctx context.Context, d time.Duration) error {
	*l.polls++
	if *l.polls >= l.after {
		l.fakeSurface.set(l.query, &fakeNode{})
	}
	return l.fakeSurface.Wait(ctx, d)
}

func TestVerifyByMarkers(t *testing.T) {
	t.Run("done marker", func(t *testing.T) {
		f := newFakeSurface()
		f.setBody("投票が完了しました")
		if err := verifyByMarkers(context.Background(), f, "投票が完了しました", nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("explicit refusal", func(t *testing.T) {
		f := newFakeSurface()
		f.setBody("購入限度額を超えています")
		err := verifyByMarkers(context.Background(), f, "投票が完了しました", []string{"購入限度額を超えています"})
		var fe *FlowError
		if !errors.As(err, &fe) || fe.Category != CategoryBusinessRule {
			t.Errorf("got %v, want business_rule", err)
		}
	})

	t.Run("no marker is ambiguous", func(t *testing.T) {
		shortTimeouts(t)
		f := newFakeSurface()
		f.setBody("読み込み中")
		err := verifyByMarkers(context.Background(), f, "投票が完了しました", []string{"エラー"})
		var fe *FlowError
		if !errors.As(err, &fe) || fe.Category != CategoryAmbiguousOutcome {
			t.Errorf("got %v, want ambiguous_outcome", err)
		}
	})
}

func TestFindByText(t *testing.T) {
	f := newFakeSurface()
	f.setTexts("button", "キャンセル", "東京 11R", "OK")

	el, found, err := findByText(context.Background(), f, "button", "東京", "11R")
	if err != nil || !found {
		t.Fatalf("not found: %v", err)
	}
	if el.Index != 1 {
		t.Errorf("got index %d, want 1", el.Index)
	}

	_, found, err = findByText(context.Background(), f, "button", "京都")
	if err != nil || found {
		t.Error("unexpected match")
	}
}
