package unmarshal

import "encoding/json"

type syncData struct {
	Targets []string `json:"targets"`
}

func decode(data []byte) (syncData, error) {
	var d syncData
	err := json.Unmarshal(data, d) // want "call of Unmarshal passes non-pointer as second argument"
	return d, err
}

func decodeOK(data []byte) (syncData, error) {
	var d syncData
	err := json.Unmarshal(data, &d)
	return d, err
}
