package vote

// Signal é o registro de negócio vindo do dispatcher, ainda sem validação.
type Signal struct {
	ID          int64    `json:"id"`
	RaceType    string   `json:"race_type"` // "JRA" | "NAR"
	Venue       string   `json:"jo_name"`
	RaceNo      int      `json:"race_no"`
	BetType     int      `json:"bet_type"`
	Method      int      `json:"method"`
	Kaime       []string `json:"kaime_data"`
	StakeAmount int      `json:"suggested_amount"`
}

// PortalFor deriva o portal da jurisdição da pista do sinal.
func PortalFor(raceType string) Portal {
	if raceType == "JRA" {
		return PortalIPAT
	}
	return PortalSPAT4
}

// Normalize converte um sinal num BetRequest validado. Qualquer violação
// vira invalid_input e o job é rejeitado antes de abrir sessão. Sem efeitos
// colaterais.
func Normalize(sig Signal) (BetRequest, error) {
	req := BetRequest{
		Venue:   sig.Venue,
		RaceNo:  sig.RaceNo,
		BetType: BetType(sig.BetType),
		Method:  Method(sig.Method),
		Stake:   sig.StakeAmount,
	}

	if sig.Venue == "" {
		return BetRequest{}, flowErr(CategoryInvalidInput, "signal missing venue")
	}
	if sig.RaceNo < 1 || sig.RaceNo > MaxRaceNo {
		return BetRequest{}, flowErrf(CategoryInvalidInput, "race number out of range", "got %d, want 1-%d", sig.RaceNo, MaxRaceNo)
	}
	if !req.BetType.Valid() {
		return BetRequest{}, flowErrf(CategoryInvalidInput, "unknown bet type", "code %d", sig.BetType)
	}
	if !req.Method.Valid() {
		return BetRequest{}, flowErrf(CategoryInvalidInput, "unknown method", "code %d", sig.Method)
	}
	if sig.StakeAmount < MinStake || sig.StakeAmount%100 != 0 {
		return BetRequest{}, flowErrf(CategoryInvalidInput, "stake must be a positive multiple of 100", "got %d", sig.StakeAmount)
	}
	if len(sig.Kaime) == 0 {
		return BetRequest{}, flowErr(CategoryInvalidInput, "signal has no combinations")
	}

	want := req.BetType.RunnerCount()
	req.Combinations = make([]Combination, 0, len(sig.Kaime))
	for _, raw := range sig.Kaime {
		combo, err := ParseCombination(raw)
		if err != nil {
			return BetRequest{}, flowErrf(CategoryInvalidInput, "malformed combination", "%v", err)
		}
		if len(combo) != want {
			return BetRequest{}, flowErrf(CategoryInvalidInput, "combination arity mismatch",
				"%s carries %d runners, %s wants %d", raw, len(combo), req.BetType, want)
		}
		if !combo.Distinct() {
			return BetRequest{}, flowErrf(CategoryInvalidInput, "combination repeats a runner", "%s", raw)
		}
		req.Combinations = append(req.Combinations, combo)
	}

	return req, nil
}
