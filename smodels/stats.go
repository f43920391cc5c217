package smodels

type Stats struct {
	Mode        string `json:"mode"`
	Latest      string `json:"latest"`
	Min         string `json:"min"`
	Max         string `json:"max"`
	TotalSupply string `json:"total_supply"`
}
