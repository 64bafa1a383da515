package scoring

import "encoding/json"

type verdictJSON struct {
	Pass    bool   `json:"pass"`
	Message string `json:"message"`
	Display string `json:"display"`
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(verdictJSON{
		Pass:    v.Pass,
		Message: v.Message,
		Display: v.Decorated(),
	})
}
