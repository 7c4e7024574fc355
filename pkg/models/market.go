package models

// Market is a top-level trading venue.
type Market string

const (
	MarketCN Market = "CN"
	MarketHK Market = "HK"
	MarketUS Market = "US"
)

// Board is a market segment with its own listing rules.
type Board string

const (
	BoardMain Board = "MAIN"
	BoardGEM  Board = "GEM"
	BoardSTAR Board = "STAR"
	BoardBSE  Board = "BSE"
	BoardST   Board = "ST"
	BoardNYSE Board = "NYSE"
)

// Channel is the access route used to trade a venue.
type Channel string

const (
	ChannelDirect  Channel = "DIRECT"
	ChannelConnect Channel = "CONNECT"
)

// TradingEnvironment pins down the exact rule context of one run.
type TradingEnvironment struct {
	Market  Market  `json:"market"`
	Board   Board   `json:"board"`
	Channel Channel `json:"channel"`
}

// Key returns the canonical "MARKET/BOARD/CHANNEL" composition key.
func (e TradingEnvironment) Key() string {
	return string(e.Market) + "/" + string(e.Board) + "/" + string(e.Channel)
}
