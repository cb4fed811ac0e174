package client

import (
	"context"
	"fmt"
	"net/url"

	"tourbook/pkg/model"
)

const (
	bookingsPath = "/api/v1/bookings"
	webhookPath  = "/webhook"
)

type CheckoutSession struct {
	SessionID       string  `json:"session_id"`
	URL             string  `json:"url"`
	ClientReference string  `json:"client_reference"`
	Total           float64 `json:"total"`
	Currency        string  `json:"currency"`
}

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(httpClient *HttpClient) *BookingClient {
	return &BookingClient{httpClient: httpClient}
}

func (c *BookingClient) As(token string) *BookingClient {
	return &BookingClient{httpClient: c.httpClient.WithToken(token)}
}

func (c *BookingClient) CreateCheckoutSession(ctx context.Context, sourceID string, in *model.CheckoutInput) (*Response, error) {
	return c.httpClient.POST(ctx, bookingsPath+"/checkout-session/"+url.PathEscape(sourceID), in)
}

func (c *BookingClient) ConfirmSession(ctx context.Context, sessionID string) (*Response, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	return c.httpClient.GET(ctx, bookingsPath+"/create?"+q.Encode())
}

func (c *BookingClient) GetAll(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, bookingsPath+"?"+pageQuery(limit, offset).Encode())
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, bookingsPath+"/id/"+url.PathEscape(id))
}

func (c *BookingClient) Availability(ctx context.Context, tourID, date string, groupSize int) (*Response, error) {
	q := url.Values{}
	q.Set("date", date)
	if groupSize > 0 {
		q.Set("group_size", fmt.Sprintf("%d", groupSize))
	}
	return c.httpClient.GET(ctx, "/api/v1/tours/"+url.PathEscape(tourID)+"/availability?"+q.Encode())
}

// Webhook posts a raw provider payload with the given signature header.
func (c *BookingClient) Webhook(ctx context.Context, payload []byte, signature string) (*Response, error) {
	return c.httpClient.POSTRaw(ctx, webhookPath, payload, map[string]string{"Stripe-Signature": signature})
}

func (c *BookingClient) DecodeCheckoutSession(resp *Response) (*CheckoutSession, error) {
	return decodeData[*CheckoutSession](resp)
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	return decodeData[*model.Booking](resp)
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, *Metadata, error) {
	return decodePage[*model.Booking](resp)
}

func (c *BookingClient) DecodeAvailability(resp *Response) (*model.Availability, error) {
	return decodeData[*model.Availability](resp)
}
