package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/obscura-markets/darkpool/pkg/client"
	"github.com/obscura-markets/darkpool/pkg/ledger"
	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
	"github.com/obscura-markets/darkpool/pkg/validate"
)

// Server exposes the order lifecycle over REST and streams committed
// events over WebSocket. All write endpoints sign with the node wallet;
// external owners use their own client instance instead of this surface.
type Server struct {
	client *client.Client
	ledger *ledger.Ledger
	router *mux.Router
	hub    *Hub
}

// NewServer creates an API server bound to a connected client and its
// backing ledger.
func NewServer(c *client.Client, led *ledger.Ledger) *Server {
	s := &Server{
		client: c,
		ledger: led,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}

	s.setupRoutes()
	led.Subscribe(s.broadcastEvent)
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/orderbooks", s.handleInitOrderbook).Methods("POST")
	api.HandleFunc("/orderbooks/{market}", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/orderbooks/{market}/pause", s.handlePauseMarket).Methods("POST")
	api.HandleFunc("/orderbooks/{market}/resume", s.handleResumeMarket).Methods("POST")

	// Order lifecycle
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/delegate", s.handleDelegateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	// Settlement
	api.HandleFunc("/trades", s.handleMatchOrders).Methods("POST")
	api.HandleFunc("/trades/{id}", s.handleGetTrade).Methods("GET")

	// Raw account lookup
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wired HTTP handler, CORS included. Exposed
// separately from Start for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// RunHub runs the WebSocket hub loop. Callers embedding the handler in
// their own http.Server run this themselves; Start does it for them.
func (s *Server) RunHub() { s.hub.Run() }

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleInitOrderbook(w http.ResponseWriter, r *http.Request) {
	var req InitOrderbookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := s.client.InitializeOrderbook(r.Context(), req.Market)
	if err != nil {
		respondClientError(w, err)
		return
	}

	log.Printf("[api] orderbook initialized: market=%s tx=%s", req.Market, res.Tx)
	respondJSON(w, TxResponse{Status: "confirmed", Tx: string(res.Tx)})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	market := mux.Vars(r)["market"]

	ob, err := s.client.Orderbook(r.Context(), market)
	if err != nil {
		respondClientError(w, err)
		return
	}
	if ob == nil {
		respondError(w, http.StatusNotFound, "orderbook not found", "")
		return
	}

	marketAddr, _ := validate.Address("market", market)
	addr, _, _ := s.client.Deriver().OrderbookAddress(marketAddr)
	respondJSON(w, OrderbookView{
		Address:    addr.String(),
		Market:     ob.Market.String(),
		Authority:  ob.Authority.String(),
		OrderCount: ob.OrderCount,
		TradeCount: ob.TradeCount,
		Paused:     ob.Paused,
	})
}

func (s *Server) handlePauseMarket(w http.ResponseWriter, r *http.Request) {
	s.handleSetPaused(w, r, true)
}

func (s *Server) handleResumeMarket(w http.ResponseWriter, r *http.Request) {
	s.handleSetPaused(w, r, false)
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request, pause bool) {
	market := mux.Vars(r)["market"]

	var (
		txid tx.TxID
		err  error
	)
	if pause {
		txid, err = s.client.PauseMarket(r.Context(), market)
	} else {
		txid, err = s.client.ResumeMarket(r.Context(), market)
	}
	if err != nil {
		respondClientError(w, err)
		return
	}

	log.Printf("[api] market pause=%v: market=%s tx=%s", pause, market, txid)
	respondJSON(w, TxResponse{Status: "confirmed", Tx: string(txid)})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req client.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := s.client.PlaceOrder(r.Context(), req)
	if err != nil {
		respondClientError(w, err)
		return
	}

	log.Printf("[api] order placed: id=%d order=%s tx=%s", req.OrderID, res.Order, res.Tx)
	respondJSON(w, TxResponse{Status: "confirmed", Tx: string(res.Tx), Order: res.Order.String()})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	order, addr, err := s.client.OrderStatus(r.Context(), orderID)
	if err != nil {
		respondClientError(w, err)
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}

	respondJSON(w, orderView(addr, order))
}

func (s *Server) handleDelegateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req DelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	// Owners delegate their own orders, so the address derives from the
	// node identity.
	orderAddr, _, err := s.client.Deriver().OrderAddress(s.client.Identity(), uint64(orderID))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "address derivation failed", err.Error())
		return
	}

	res, err := s.client.DelegateOrder(r.Context(), client.DelegateOrderRequest{
		Order:        orderAddr.String(),
		OrderID:      orderID,
		ValidUntil:   req.ValidUntil,
		CommitFreqMs: req.CommitFreqMs,
	})
	if err != nil {
		respondClientError(w, err)
		return
	}

	log.Printf("[api] order delegated: id=%d stale=%v tx=%s", orderID, res.Stale, res.Tx)
	respondJSON(w, TxResponse{Status: "confirmed", Tx: string(res.Tx), Order: orderAddr.String(), Stale: res.Stale})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	txid, err := s.client.CancelOrder(r.Context(), orderID)
	if err != nil {
		respondClientError(w, err)
		return
	}

	log.Printf("[api] order cancelled: id=%d tx=%s", orderID, txid)
	respondJSON(w, TxResponse{Status: "confirmed", Tx: string(txid)})
}

func (s *Server) handleMatchOrders(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := s.client.MatchOrders(r.Context(), client.MatchOrdersRequest{
		Market:    req.Market,
		TradeID:   req.TradeID,
		BuyOrder:  req.BuyOrder,
		SellOrder: req.SellOrder,
	})
	if err != nil {
		respondClientError(w, err)
		return
	}

	log.Printf("[api] orders matched: trade=%d result=%s tx=%s", req.TradeID, res.TradeResult, res.Tx)
	respondJSON(w, TxResponse{Status: "confirmed", Tx: string(res.Tx), Trade: res.TradeResult.String()})
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, ok := pathID(w, r)
	if !ok {
		return
	}

	trade, err := s.client.TradeResult(r.Context(), tradeID)
	if err != nil {
		respondClientError(w, err)
		return
	}
	if trade == nil {
		respondError(w, http.StatusNotFound, "trade not found", "")
		return
	}

	addr, _, _ := s.client.Deriver().TradeAddress(trade.TradeID)
	respondJSON(w, TradeView{
		Address:    addr.String(),
		TradeID:    trade.TradeID,
		Buyer:      trade.Buyer.String(),
		Seller:     trade.Seller.String(),
		BuyOrder:   trade.BuyOrder.String(),
		SellOrder:  trade.SellOrder.String(),
		Amount:     trade.Amount,
		Price:      trade.Price,
		ExecutedAt: trade.ExecutedAt,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pda.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	acc, err := s.ledger.Account(r.Context(), addr)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "account read failed", err.Error())
		return
	}
	if acc == nil {
		respondError(w, http.StatusNotFound, "account not found", "")
		return
	}

	var data interface{}
	if err := json.Unmarshal(acc.Data, &data); err != nil {
		data = string(acc.Data)
	}
	respondJSON(w, AccountView{
		Address: acc.Address.String(),
		Owner:   acc.Owner.String(),
		Data:    data,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Event Broadcast
// ==============================

// broadcastEvent fans a committed ledger event out to subscribed clients.
// Wired as the ledger's event sink; must not block.
func (s *Server) broadcastEvent(ev ledger.Event) {
	s.hub.BroadcastToChannel("events", ev)
	if !ev.Market.IsZero() {
		s.hub.BroadcastToChannel("market:"+ev.Market.String(), ev)
	}
	if ev.Kind == ledger.EventTradeExecuted {
		s.hub.BroadcastToChannel("trades", ev)
	}
}

// ==============================
// Helper Functions
// ==============================

func orderView(addr pda.Address, o *tx.Order) OrderView {
	return OrderView{
		Address:      addr.String(),
		Owner:        o.Owner.String(),
		OrderID:      o.OrderID,
		Side:         o.Side.String(),
		Status:       o.Status.String(),
		Amount:       o.Amount,
		Price:        o.Price,
		Filled:       o.FilledAmount,
		Remaining:    o.Remaining(),
		CreatedAt:    o.CreatedAt,
		ValidUntil:   o.ValidUntil,
		CommitFreqMs: o.CommitFreqMs,
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id", err.Error())
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondClientError maps the client error taxonomy onto HTTP statuses:
// validation 400, missing state 404, authority 403, conflicts 409,
// everything else 502 (opaque submission failure).
func respondClientError(w http.ResponseWriter, err error) {
	var fe *validate.FieldError
	var pe *client.PreconditionError

	switch {
	case errors.As(err, &fe):
		respondError(w, http.StatusBadRequest, "validation_failed", fe.Error())
	case errors.As(err, &pe):
		status := http.StatusConflict
		switch pe.Code {
		case client.CodeOrderNotFound, client.CodeOrderbookNotInitialized:
			status = http.StatusNotFound
		case client.CodeNotOwner, client.CodeNotAuthority:
			status = http.StatusForbidden
		}
		respondError(w, status, string(pe.Code), pe.Error())
	default:
		respondError(w, http.StatusBadGateway, "submission_failed", err.Error())
	}
}
