package pathstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/docreader/internal/pipeline"
)

const documentsPrefix = "reader/documents"

// listLimit caps one library scan.
const listLimit = 1000

func positionKey(docID string) string {
	return documentsPrefix + "/" + docID + "/position"
}

// LoadPosition implements pipeline.PositionStore.
func (c *Client) LoadPosition(ctx context.Context, docID string) (pipeline.Record, bool, error) {
	node, err := c.GetNode(ctx, positionKey(docID))
	if err != nil {
		return pipeline.Record{}, false, err
	}
	if node == nil {
		return pipeline.Record{}, false, nil
	}
	var rec pipeline.Record
	if err := json.Unmarshal(node.Value, &rec); err != nil {
		return pipeline.Record{}, false, fmt.Errorf("decode position %s: %w", docID, err)
	}
	if rec.DocID == "" {
		rec.DocID = docID
	}
	return rec, true, nil
}

// SavePosition implements pipeline.PositionStore.
func (c *Client) SavePosition(ctx context.Context, rec pipeline.Record) error {
	return c.PutNode(ctx, positionKey(rec.DocID), NodeRequest{
		Value:     rec,
		MergeMode: "replace",
		Source:    "docreader",
	})
}

// ListPositions implements pipeline.PositionStore.
func (c *Client) ListPositions(ctx context.Context) ([]pipeline.Record, error) {
	nodes, err := c.ListChildren(ctx, documentsPrefix, listLimit)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Record, 0, len(nodes))
	for _, n := range nodes {
		if !strings.HasSuffix(n.Key, "/position") {
			continue
		}
		var rec pipeline.Record
		if err := json.Unmarshal(n.Value, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	pipeline.SortRecent(out)
	return out, nil
}

// DeletePosition implements pipeline.PositionStore.
func (c *Client) DeletePosition(ctx context.Context, docID string) error {
	return c.DeleteNode(ctx, documentsPrefix+"/"+docID, true)
}
