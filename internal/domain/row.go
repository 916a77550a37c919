package domain

// Row is one line of the final allocation handed to a result sink.
type Row struct {
	ProductCode   string `json:"productCode"`
	Quantity      int    `json:"quantity"`
	CarrierName   string `json:"carrierName"`
	CarrierType   string `json:"carrierType"`
	Letter        string `json:"letter,omitempty"`
	CarrierNumber int    `json:"carrierNumber"`
	LogisticKey   string `json:"logisticKey"`
}
