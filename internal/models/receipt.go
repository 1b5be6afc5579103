package models

import "github.com/shopspring/decimal"

// Receipt is the notification the asset-transfer protocol delivers when
// units addressed to the ledger arrive.
type Receipt struct {
	AssetID    string
	Sender     string
	Amount     decimal.Decimal
	RoutingTag []byte
	TransferID string
}
