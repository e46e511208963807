package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll follows pagination and returns every page matching req's filter
// and sorts.
func QueryAll(ctx context.Context, c Client, dbID string, req *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	q := notionapi.DatabaseQueryRequest{}
	if req != nil {
		q.Filter = req.Filter
		q.Sorts = req.Sorts
		q.PageSize = req.PageSize
	}

	var all []notionapi.Page
	for {
		resp, err := c.QueryDatabase(ctx, dbID, &q)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		q.StartCursor = resp.NextCursor
	}
}

// QueryByText returns the pages whose rich-text property equals value.
func QueryByText(ctx context.Context, c Client, dbID, property, value string) ([]notionapi.Page, error) {
	return QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			RichText: &notionapi.TextFilterCondition{Equals: value},
		},
	})
}

// Archive moves pages to the trash.
func Archive(ctx context.Context, c Client, pages []notionapi.Page) error {
	for _, p := range pages {
		_, err := c.UpdatePage(ctx, string(p.ID), &notionapi.PageUpdateRequest{
			Archived:   true,
			Properties: notionapi.Properties{},
		})
		if err != nil {
			return eris.Wrapf(err, "notion: archive page %s", p.ID)
		}
	}
	return nil
}
