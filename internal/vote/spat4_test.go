package vote

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func spat4Creds() SPAT4Credentials {
	return SPAT4Credentials{
		MemberNumber: "12345",
		MemberID:     "abcde",
		SecretCode:   "7777",
	}
}

// spat4Portal roteiriza o portal regional no fakeSurface: login, grade da
// pista, tabela de odds com quatro inscritos e a tela de confirmação.
func spat4Portal() *fakeSurface {
	f := newFakeSurface()
	f.setBody("ログイン画面")

	f.set(spat4MemberNumQuery, &fakeNode{})
	f.set(spat4MemberIDQuery, &fakeNode{})
	f.set(spat4LoginSubmitQuery, &fakeNode{onClick: func(f *fakeSurface) {
		f.setTexts(spat4DateQuery, "8月30日")
	}})

	f.setTexts(spat4RaceNameQuery, "大井競馬")
	f.set(`table[summary="出走表"]`, &fakeNode{})
	f.setTexts(spat4ScheduleLinkQuery, "9R", "オッズ投票", "10R", "オッズ投票")

	f.set(spat4OddsTableQuery, &fakeNode{})
	f.setTexts(spat4OddsRowQuery,
		"1 アルファ 2.5",
		"2 ブラボー 3.1",
		"3 チャーリー 4.0",
		"4 デルタ 5.5",
	)
	f.setTexts(spat4OddsAnchorQuery, "2.5", "3.1", "4.0", "5.5")

	f.setTexts(spat4AmountInputQuery, "", "", "", "", "", "")
	f.setTexts(spat4ShikiInputQuery, "", "", "", "", "", "")
	f.setTexts(spat4RunnerInputQuery, "", "", "", "", "", "")

	f.set(spat4ConfirmBtnQuery, &fakeNode{})
	f.setTexts(spat4TotalTableQuery, "馬複", "2点", "合計金額", "1,000円")
	f.set(spat4SecretQuery, &fakeNode{})
	f.set(spat4TotalInputQuery, &fakeNode{})
	f.set(spat4CommitQuery, &fakeNode{onClick: func(f *fakeSurface) {
		f.setBody("投票を受け付けました")
	}})

	return f
}

func runSPAT4(t *testing.T, f *fakeSurface, sig Signal) Outcome {
	t.Helper()
	req, err := Normalize(sig)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	sess := NewSession(f)
	flow := NewSPAT4Flow(sess, spat4Creds(), "https://example.test/spat4", zap.NewNop())
	return NewEngine(sess, flow, zap.NewNop()).Run(context.Background(), req)
}

func TestSPAT4ShikiCode(t *testing.T) {
	cases := []struct {
		t    BetType
		want string
	}{
		{BetBracketQuinella, "3"},
		{BetQuinella, "5"},
		{BetExacta, "6"},
		{BetWide, "7"},
		{BetTrio, "8"},
		{BetTrifecta, "9"},
		{BetWin, ""},
		{BetPlace, ""},
	}
	for _, c := range cases {
		if got := spat4ShikiCode(c.t); got != c.want {
			t.Errorf("spat4ShikiCode(%s) = %q, want %q", c.t, got, c.want)
		}
	}
}

func TestSPAT4Flow_QuinellaBet(t *testing.T) {
	f := spat4Portal()

	out := runSPAT4(t, f, Signal{
		ID: 1, RaceType: "NAR", Venue: "大井", RaceNo: 10,
		BetType: int(BetQuinella), Method: int(MethodBox),
		Kaime: []string{"1-2", "3-4"}, StakeAmount: 500,
	})

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if got := f.fills[spat4RunnerInputQuery+"[0]"]; got != "000100020000" {
		t.Errorf("first combination encoding = %q, want 000100020000", got)
	}
	if got := f.fills[spat4RunnerInputQuery+"[1]"]; got != "000300040000" {
		t.Errorf("second combination encoding = %q, want 000300040000", got)
	}
	if got := f.fills[spat4ShikiInputQuery+"[0]"]; got != "5" {
		t.Errorf("shiki code = %q, want 5", got)
	}
	// Valor por combinação em unidades de 100 ienes.
	if got := f.fills[spat4AmountInputQuery+"[0]"]; got != "5" {
		t.Errorf("amount fill = %q, want 5", got)
	}
	// O portal exige o total redigitado no submit.
	if got := f.fills[spat4TotalInputQuery+"[0]"]; got != "1000" {
		t.Errorf("total retype = %q, want 1000", got)
	}
	if got := f.fills[spat4SecretQuery+"[0]"]; got != "7777" {
		t.Errorf("secret fill = %q, want 7777", got)
	}
	if n := f.clickCount(spat4OddsAnchorQuery); n != 2 {
		t.Errorf("anchors clicked %d times, want 2", n)
	}
}

func TestSPAT4Flow_WinAndPlaceColumns(t *testing.T) {
	cases := []struct {
		name    string
		betType BetType
		wantIdx string
	}{
		// Cada linha carrega duas âncoras: vitória na coluna 0, colocação na 1.
		{"win", BetWin, spat4OddsAnchorQuery + "[2]"},
		{"place", BetPlace, spat4OddsAnchorQuery + "[3]"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := spat4Portal()
			f.setTexts(spat4TotalTableQuery, "単勝複勝", "1点", "合計金額", "500円")

			out := runSPAT4(t, f, Signal{
				ID: 2, RaceType: "NAR", Venue: "大井", RaceNo: 10,
				BetType: int(c.betType), Kaime: []string{"2"}, StakeAmount: 500,
			})
			if !out.Success {
				t.Fatalf("expected success, got %+v", out)
			}
			found := false
			for _, click := range f.clicks {
				if click == c.wantIdx {
					found = true
				}
			}
			if !found {
				t.Errorf("expected click on %s, got %v", c.wantIdx, f.clicks)
			}
		})
	}
}

func TestSPAT4Flow_MarketRotationExhausted(t *testing.T) {
	f := spat4Portal()
	// Nenhuma âncora disponível em mercado algum.
	f.remove(spat4OddsAnchorQuery)
	f.set(spat4MarketSelQuery, &fakeNode{})

	out := runSPAT4(t, f, Signal{
		ID: 3, RaceType: "NAR", Venue: "大井", RaceNo: 10,
		BetType: int(BetQuinella), Method: int(MethodBox),
		Kaime: []string{"1-2"}, StakeAmount: 500,
	})

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Category != CategoryTooManyCombinations {
		t.Errorf("got category %s, want too_many_combinations", out.Category)
	}
	// A rotação percorreu a lista inteira antes de desistir.
	if got := f.selects[spat4MarketSelQuery+"[0]"]; got != spat4MarketRotation[len(spat4MarketRotation)-1] {
		t.Errorf("last rotated market = %q, want %q", got, spat4MarketRotation[len(spat4MarketRotation)-1])
	}
}

func TestSPAT4Flow_OutsideBettingWindow(t *testing.T) {
	f := spat4Portal()
	// A corrida consta na grade, mas sem o link de votação por odds.
	f.setTexts(spat4ScheduleLinkQuery, "9R", "オッズ投票", "10R")

	out := runSPAT4(t, f, Signal{
		ID: 4, RaceType: "NAR", Venue: "大井", RaceNo: 10,
		BetType: int(BetQuinella), Method: int(MethodBox),
		Kaime: []string{"1-2"}, StakeAmount: 500,
	})

	if out.Category != CategoryScheduleMismatch {
		t.Errorf("got category %s, want schedule_mismatch", out.Category)
	}
}

// Retirados no SPAT4 são derivados por complemento: linha de odds sem âncora
// de aposta é corredor fora do páreo.
func TestSPAT4ResolveScratches_Complement(t *testing.T) {
	f := spat4Portal()
	f.setTexts(spat4OddsRowQuery, "1 アルファ 2.5", "3 チャーリー 4.0", "5 エコー 8.8")
	sess := NewSession(f)
	flow := NewSPAT4Flow(sess, spat4Creds(), "https://example.test/spat4", zap.NewNop())

	set, err := flow.ResolveScratches(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, running := range []int{1, 3, 5} {
		if set.Contains(running) {
			t.Errorf("runner %d wrongly marked scratched", running)
		}
	}
	for _, scratched := range []int{2, 4, 18} {
		if !set.Contains(scratched) {
			t.Errorf("runner %d should be scratched", scratched)
		}
	}
}

func TestSPAT4Flow_RejectedCredentials(t *testing.T) {
	f := spat4Portal()
	f.set(spat4LoginSubmitQuery, &fakeNode{onClick: func(f *fakeSurface) {
		f.setBody("入力内容に誤りがあります")
	}})

	out := runSPAT4(t, f, Signal{
		ID: 5, RaceType: "NAR", Venue: "大井", RaceNo: 10,
		BetType: int(BetQuinella), Method: int(MethodBox),
		Kaime: []string{"1-2"}, StakeAmount: 500,
	})

	if out.Category != CategoryAuthentication {
		t.Errorf("got category %s, want authentication_error", out.Category)
	}
}
