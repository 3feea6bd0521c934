package server

// joinResponse is the payload returned by POST /join. It carries
// everything a client needs to render the first frame before the
// websocket delivers its first state message.
type joinResponse struct {
	Ver    int            `json:"ver"`
	ID     string         `json:"id"`
	Vet    Vet            `json:"vet"`
	Vets   []Vet          `json:"vets"`
	Clinic ClinicSnapshot `json:"clinic"`
	Config configMessage  `json:"config"`
}

func (joinResponse) ProtoJoinResponse() {}

// configMessage mirrors the tunables clients need for local prediction.
type configMessage struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	TilesPerSecond float64 `json:"tilesPerSecond"`
	TickRate       int     `json:"tickRate"`
}

// stateMessage is the per-broadcast snapshot pushed to every connected
// client.
type stateMessage struct {
	Ver        int            `json:"ver"`
	Type       string         `json:"type"`
	Vets       []Vet          `json:"vets"`
	Clinic     ClinicSnapshot `json:"clinic"`
	Exam       *ExamView      `json:"exam,omitempty"`
	Tick       uint64         `json:"t"`
	ServerTime int64          `json:"serverTime"`
}

func (stateMessage) ProtoStateSnapshot() {}

// toastMessage delivers a transient notice to a single client.
type toastMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Text string `json:"text"`
}

func (toastMessage) ProtoToast() {}

type diagnosticsVet struct {
	Ver           int    `json:"ver"`
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
