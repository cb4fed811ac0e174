package client

import (
	"context"
	"fmt"
	"net/url"

	"tourbook/pkg/model"
)

const customizedToursPath = "/api/v1/customized-tours"

type CustomizedTourClient struct {
	httpClient *HttpClient
}

func NewCustomizedTourClient(httpClient *HttpClient) *CustomizedTourClient {
	return &CustomizedTourClient{httpClient: httpClient}
}

// As returns a client that calls the API with token.
func (c *CustomizedTourClient) As(token string) *CustomizedTourClient {
	return &CustomizedTourClient{httpClient: c.httpClient.WithToken(token)}
}

func (c *CustomizedTourClient) Create(ctx context.Context, in *model.CustomizedTourInput) (*Response, error) {
	return c.httpClient.POST(ctx, customizedToursPath, in)
}

func (c *CustomizedTourClient) ListMine(ctx context.Context, status model.CustomizedTourStatus, limit int, offset int64) (*Response, error) {
	q := pageQuery(limit, offset)
	if status != "" {
		q.Set("status", string(status))
	}
	return c.httpClient.GET(ctx, customizedToursPath+"/my-requests?"+q.Encode())
}

func (c *CustomizedTourClient) GetMine(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, customizedToursPath+"/my-requests/"+url.PathEscape(id))
}

func (c *CustomizedTourClient) ListCancelled(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, customizedToursPath+"/canceled?"+pageQuery(limit, offset).Encode())
}

func (c *CustomizedTourClient) ListGuideRequests(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, customizedToursPath+"/guide-requests?"+pageQuery(limit, offset).Encode())
}

func (c *CustomizedTourClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, requestPath(id))
}

func (c *CustomizedTourClient) Delete(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.DELETE(ctx, requestPath(id))
}

func (c *CustomizedTourClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.PATCH(ctx, requestPath(id)+"/cancel", nil)
}

// BrowseGuides lists eligible guides; sort is "rating", "-rating" or "".
func (c *CustomizedTourClient) BrowseGuides(ctx context.Context, id, sort string, limit int, offset int64) (*Response, error) {
	q := pageQuery(limit, offset)
	if sort != "" {
		q.Set("sort", sort)
	}
	return c.httpClient.GET(ctx, requestPath(id)+"/browse-guides?"+q.Encode())
}

func (c *CustomizedTourClient) SendInvitation(ctx context.Context, id, guideID string) (*Response, error) {
	return c.httpClient.PATCH(ctx, guidePath(id, guideID)+"/send-request", nil)
}

func (c *CustomizedTourClient) CancelInvitation(ctx context.Context, id, guideID string) (*Response, error) {
	return c.httpClient.PATCH(ctx, guidePath(id, guideID)+"/cancel-request", nil)
}

func (c *CustomizedTourClient) SubmitBid(ctx context.Context, id string, price float64) (*Response, error) {
	return c.httpClient.PATCH(ctx, customizedToursPath+"/respond/"+url.PathEscape(id), model.BidInput{Price: price})
}

func (c *CustomizedTourClient) RespondToBid(ctx context.Context, id, guideID string, decision model.Decision) (*Response, error) {
	return c.httpClient.PATCH(ctx, requestPath(id)+"/respond/guide/"+url.PathEscape(guideID), model.DecisionInput{Decision: decision})
}

// ConfirmCompletion records the calling party's confirmation; party is
// "guide" or "user".
func (c *CustomizedTourClient) ConfirmCompletion(ctx context.Context, id, party string) (*Response, error) {
	return c.httpClient.PATCH(ctx, requestPath(id)+"/confirm-completion/"+url.PathEscape(party), nil)
}

func (c *CustomizedTourClient) DecodeRequest(resp *Response) (*model.CustomizedTourRequest, error) {
	return decodeData[*model.CustomizedTourRequest](resp)
}

func (c *CustomizedTourClient) DecodeRequests(resp *Response) ([]*model.CustomizedTourRequest, *Metadata, error) {
	return decodePage[*model.CustomizedTourRequest](resp)
}

func (c *CustomizedTourClient) DecodeGuides(resp *Response) ([]*model.Guide, *Metadata, error) {
	return decodePage[*model.Guide](resp)
}

func requestPath(id string) string {
	return customizedToursPath + "/id/" + url.PathEscape(id)
}

func guidePath(id, guideID string) string {
	return requestPath(id) + "/guides/" + url.PathEscape(guideID)
}

func pageQuery(limit int, offset int64) url.Values {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("offset", fmt.Sprintf("%d", offset))
	return q
}
