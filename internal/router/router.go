package router

import (
	"net/http"

	"github.com/senyabanana/marketplace-service/internal/handlers"
)

func InitRoutes(requestHandler *handlers.RequestHandler, offerHandler *handlers.OfferHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	mux.HandleFunc("POST /api/requests/new", requestHandler.CreateRequest)
	mux.HandleFunc("GET /api/requests/available", requestHandler.GetAvailable)
	mux.HandleFunc("GET /api/requests/my", requestHandler.GetMy)
	mux.HandleFunc("GET /api/requests/assigned", requestHandler.GetAssigned)
	mux.HandleFunc("POST /api/requests/{requestId}/claim", requestHandler.Claim)
	mux.HandleFunc("POST /api/requests/{requestId}/action", requestHandler.Action)
	mux.HandleFunc("POST /api/requests/{requestId}/decline", requestHandler.Decline)
	mux.HandleFunc("GET /api/requests/{requestId}/actions", requestHandler.GetActions)
	mux.HandleFunc("GET /api/requests/{requestId}/history", requestHandler.GetHistory)

	mux.HandleFunc("POST /api/requests/{requestId}/offers", offerHandler.CreateOffer)
	mux.HandleFunc("GET /api/requests/{requestId}/offers", offerHandler.ListOffers)
	mux.HandleFunc("POST /api/offers/{offerId}/accept", offerHandler.AcceptOffer)

	return mux
}
