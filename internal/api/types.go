package api

// api-id values for the endpoints this client uses. The id selects the
// transaction; the URL path only groups endpoints by category.
const (
	apiStockInfo     = "ka10001" // Stock master/quote info
	apiOrderBook     = "ka10004" // Ten-level order book
	apiMinuteCandles = "ka10080" // Minute chart
	apiDailyCandles  = "ka10081" // Daily chart
	apiStockList     = "ka10099" // Listed stock search
	apiUnfilled      = "ka10075" // Unfilled orders
	apiFills         = "ka10076" // Executed orders
	apiBalance       = "kt00018" // Account evaluation balance
	apiOrderBuy      = "kt10000" // Buy order
	apiOrderSell     = "kt10001" // Sell order
	apiOrderModify   = "kt10002" // Modify order
	apiOrderCancel   = "kt10003" // Cancel order
	apiApprovalKey   = "au10001" // WebSocket approval key
)

// URL paths by endpoint category.
const (
	pathStockInfo = "/api/dostk/stkinfo"
	pathMarket    = "/api/dostk/mrkcond"
	pathChart     = "/api/dostk/chart"
	pathAccount   = "/api/dostk/acnt"
	pathOrder     = "/api/dostk/ordr"
	pathApproval  = "/api/dostk/websocket"
)

// ---------------------------------------------------------------------------
// Wire types. Broker numeric values arrive as strings, prices with a
// direction sign prefix; convert.go normalizes them.
// ---------------------------------------------------------------------------

type quoteWire struct {
	returnEnvelope
	Code       string `json:"stk_cd"`
	Name       string `json:"stk_nm"`
	CurPrice   string `json:"cur_prc"`
	Change     string `json:"pred_pre"`
	ChangeRate string `json:"flu_rt"`
	Volume     string `json:"trde_qty"`
	Value      string `json:"trde_prica"`
	Open       string `json:"open_pric"`
	High       string `json:"high_pric"`
	Low        string `json:"low_pric"`
	PrevClose  string `json:"pred_close_pric"`
}

type orderBookWire struct {
	returnEnvelope
	Code      string          `json:"stk_cd"`
	Timestamp string          `json:"bid_req_base_tm"` // HHMMSS
	Asks      []bookLevelWire `json:"sel_bid"`
	Bids      []bookLevelWire `json:"buy_bid"`
}

type bookLevelWire struct {
	Price string `json:"bid_pric"`
	Size  string `json:"bid_qty"`
}

type dailyCandlesWire struct {
	returnEnvelope
	Code    string       `json:"stk_cd"`
	Candles []candleWire `json:"stk_dt_pole_chart_qry"`
}

type minuteCandlesWire struct {
	returnEnvelope
	Code    string       `json:"stk_cd"`
	Candles []candleWire `json:"stk_min_pole_chart_qry"`
}

type candleWire struct {
	Date   string `json:"dt"`      // YYYYMMDD (daily) or YYYYMMDDHHMMSS (minute)
	Open   string `json:"open_pric"`
	High   string `json:"high_pric"`
	Low    string `json:"low_pric"`
	Close  string `json:"cur_prc"`
	Volume string `json:"trde_qty"`
}

type stockListWire struct {
	returnEnvelope
	Stocks []stockListItemWire `json:"list"`
}

type stockListItemWire struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"marketName"`
}

type balanceWire struct {
	returnEnvelope
	Cash          string        `json:"prsm_dpst_aset_amt"`
	TotalEval     string        `json:"tot_evlt_amt"`
	TotalPurchase string        `json:"tot_pur_amt"`
	PnL           string        `json:"tot_evlt_pl"`
	Holdings      []holdingWire `json:"acnt_evlt_remn_indv_tot"`
}

type holdingWire struct {
	Code     string `json:"stk_cd"`
	Name     string `json:"stk_nm"`
	Quantity string `json:"rmnd_qty"`
	AvgPrice string `json:"pur_pric"`
	CurPrice string `json:"cur_prc"`
	EvalAmt  string `json:"evlt_amt"`
	PnL      string `json:"evltv_prft"`
	PnLRate  string `json:"prft_rt"`
}

type unfilledWire struct {
	returnEnvelope
	Orders []unfilledOrderWire `json:"oso"`
}

type unfilledOrderWire struct {
	OrderID   string `json:"ord_no"`
	Code      string `json:"stk_cd"`
	Name      string `json:"stk_nm"`
	Side      string `json:"io_tp_nm"` // "매수" / "매도"
	Quantity  string `json:"ord_qty"`
	OpenQty   string `json:"oso_qty"`
	FilledQty string `json:"cntr_qty"`
	Price     string `json:"ord_pric"`
	Time      string `json:"tm"` // HHMMSS
}

type fillsWire struct {
	returnEnvelope
	Fills []fillWire `json:"cntr"`
}

type fillWire struct {
	ExecID   string `json:"cntr_no"`
	OrderID  string `json:"ord_no"`
	Code     string `json:"stk_cd"`
	Side     string `json:"io_tp_nm"`
	Quantity string `json:"cntr_qty"`
	Price    string `json:"cntr_pric"`
	Fee      string `json:"cmsn"`
	Tax      string `json:"tax"`
	Time     string `json:"cntr_tm"` // HHMMSS
}

type orderResponseWire struct {
	returnEnvelope
	OrderID string `json:"ord_no"`
}

type approvalKeyWire struct {
	returnEnvelope
	ApprovalKey string `json:"approval_key"`
}
