package server

// PatientState enumerates the patient lifecycle. Entering and Waiting move
// identically; they only distinguish "just walked in" from "settled on the
// bench".
type PatientState string

const (
	PatientEntering PatientState = "entering"
	PatientWaiting  PatientState = "waiting"
	PatientToExam   PatientState = "toExam"
	PatientExam     PatientState = "exam"
	PatientLeaving  PatientState = "leaving"
)

// Patient is the broadcast-facing view of one clinic visitor.
type Patient struct {
	ID           uint64       `json:"id"`
	Name         string       `json:"name"`
	Species      string       `json:"species"`
	ComplaintID  ComplaintID  `json:"complaintId"`
	Pos          vec2         `json:"pos"`
	Target       vec2         `json:"target"`
	State        PatientState `json:"state"`
	AtExam       bool         `json:"atExam"`
	ExamRequired bool         `json:"examRequired"`
	ExamDone     bool         `json:"examDone"`
	ExamScore    int          `json:"examScore"`
	SpriteID     int          `json:"spriteId"`
}

// patientState is the mutable simulation record backing a Patient snapshot.
type patientState struct {
	Patient
	speedTiles float64
	// examRolled flips once the patient reaches the exam table and the
	// exam requirement has been decided; ExamRequired is meaningless
	// before that.
	examRolled bool
}

func (p *patientState) snapshot() Patient {
	return p.Patient
}

// Cosmetic pools. Selection is pool-indexed off the monotonic patient
// counter so the rotation looks varied without burning RNG draws.
var (
	patientNames   = []string{"Bimo", "Rara", "Moka", "Ciko"}
	patientSpecies = []string{"cat", "dog", "rabbit", "hamster"}

	// Some regulars always wear the same sprite set.
	preferredSpriteByName = map[string]int{
		"Rara": 1,
		"Ciko": 2,
		"Bimo": 3,
		"Moka": 4,
	}

	availableSpriteIDs = []int{1, 2, 3, 4}
)

func patientNameFor(counter uint64) string {
	return patientNames[int(counter*7)%len(patientNames)]
}

func patientSpeciesFor(counter uint64) string {
	return patientSpecies[int(counter*5)%len(patientSpecies)]
}

// spriteFor honours a name's pinned sprite when that set exists, otherwise
// rotates through the available pool.
func spriteFor(name string, counter uint64) int {
	if id, ok := preferredSpriteByName[name]; ok && spriteAvailable(id) {
		return id
	}
	if len(availableSpriteIDs) == 0 {
		return 1
	}
	return availableSpriteIDs[int(counter-1)%len(availableSpriteIDs)]
}

func spriteAvailable(id int) bool {
	for _, candidate := range availableSpriteIDs {
		if candidate == id {
			return true
		}
	}
	return false
}
