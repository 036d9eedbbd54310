package vote

// Limites fixos do domínio pari-mutuel japonês.
const (
	MinStake  = 100 // aposta mínima por combinação, em ienes
	MaxRunner = 18  // maior número de corredor possível numa corrida
	MaxRaceNo = 12
)

// Portal identifica qual variante do fluxo de votação será usada.
type Portal string

const (
	PortalIPAT  Portal = "ipat"  // pool nacional (JRA)
	PortalSPAT4 Portal = "spat4" // pool regional (NAR)
)

// BetType é o código do tipo de aposta (1-8), igual ao usado nos sinais.
type BetType int

const (
	BetWin             BetType = 1 // 単勝
	BetPlace           BetType = 2 // 複勝
	BetBracketQuinella BetType = 3 // 枠連
	BetQuinella        BetType = 4 // 馬連
	BetWide            BetType = 5 // ワイド
	BetExacta          BetType = 6 // 馬単
	BetTrio            BetType = 7 // 3連複
	BetTrifecta        BetType = 8 // 3連単
)

// RunnerCount é a aridade exigida de cada combinação para o tipo.
func (t BetType) RunnerCount() int {
	switch t {
	case BetWin, BetPlace:
		return 1
	case BetBracketQuinella, BetQuinella, BetWide, BetExacta:
		return 2
	case BetTrio, BetTrifecta:
		return 3
	default:
		return 0
	}
}

// Ordered indica se a ordem dos corredores na combinação importa.
func (t BetType) Ordered() bool {
	return t == BetExacta || t == BetTrifecta
}

// FrameGrouped indica tipos apostados por grupo de largada (枠) e não por
// corredor individual; esses tipos não passam pelo filtro de cancelados.
func (t BetType) FrameGrouped() bool {
	return t == BetBracketQuinella
}

// Valid reporta se o código corresponde a um tipo conhecido.
func (t BetType) Valid() bool {
	return t >= BetWin && t <= BetTrifecta
}

// PortalLabel é o rótulo exibido nos widgets dos portais.
func (t BetType) PortalLabel() string {
	switch t {
	case BetWin:
		return "単勝"
	case BetPlace:
		return "複勝"
	case BetBracketQuinella:
		return "枠連"
	case BetQuinella:
		return "馬連"
	case BetWide:
		return "ワイド"
	case BetExacta:
		return "馬単"
	case BetTrio:
		return "３連複"
	case BetTrifecta:
		return "３連単"
	default:
		return ""
	}
}

func (t BetType) String() string {
	switch t {
	case BetWin:
		return "win"
	case BetPlace:
		return "place"
	case BetBracketQuinella:
		return "bracket_quinella"
	case BetQuinella:
		return "quinella"
	case BetWide:
		return "wide"
	case BetExacta:
		return "exacta"
	case BetTrio:
		return "trio"
	case BetTrifecta:
		return "trifecta"
	default:
		return "unknown"
	}
}

// Method é o código da forma de combinação dos corredores.
type Method int

const (
	MethodNone      Method = 0
	MethodWheel     Method = 101 // ながし
	MethodBox       Method = 201 // ボックス
	MethodFormation Method = 301 // フォーメーション
)

func (m Method) Valid() bool {
	switch m {
	case MethodNone, MethodWheel, MethodBox, MethodFormation:
		return true
	}
	return false
}

// PortalLabel é o rótulo do método nos selects do IPAT.
func (m Method) PortalLabel() string {
	switch m {
	case MethodWheel:
		return "ながし"
	case MethodBox:
		return "ボックス"
	default:
		return "フォーメーション"
	}
}

// BetRequest é uma instrução de aposta normalizada contra um portal.
// Todas as combinações compartilham pista, corrida, tipo e método.
type BetRequest struct {
	Venue        string // nome da pista, ex: "東京", "大井"
	RaceNo       int    // 1-12
	BetType      BetType
	Method       Method
	Combinations []Combination
	Stake        int // valor por combinação, múltiplo de 100
}

// TotalStake é a soma local que deve bater com o total calculado pelo portal.
func (r *BetRequest) TotalStake() int {
	return len(r.Combinations) * r.Stake
}

// IPATCredentials são as credenciais do portal nacional.
type IPATCredentials struct {
	SubscriberID string `json:"subscriber_id"`
	UserCode     string `json:"user_code"`
	Password     string `json:"password"`
	PIN          string `json:"pin"`
}

// SPAT4Credentials são as credenciais do portal regional.
type SPAT4Credentials struct {
	MemberNumber string `json:"member_number"`
	MemberID     string `json:"member_id"`
	SecretCode   string `json:"secret_code"`
}

// Outcome é o resultado terminal de um job de votação, reportado uma única vez.
type Outcome struct {
	Success  bool
	Message  string
	Detail   string
	Category Category
}
