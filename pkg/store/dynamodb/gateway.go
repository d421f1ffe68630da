package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agentick/dashboard/pkg/store"
	"github.com/agentick/dashboard/pkg/types"
)

// Gateway implements store.Gateway on a single DynamoDB table keyed by the
// document id. Writes publish change events on the feed after they commit.
type Gateway struct {
	table string
	cli   *dynamodb.Client
	feed  store.ChangeFeed
	now   func() time.Time
}

var _ store.Gateway = (*Gateway)(nil)

// NewGateway ensures the table is usable and wraps it. A failed CreateTable
// against a table that is nonetheless reachable (pre-provisioned account
// with CreateTable denied) is downgraded to a warning. feed may be nil when
// no subscriber runs in this process.
func NewGateway(ctx context.Context, table string, cli *dynamodb.Client, feed store.ChangeFeed) (*Gateway, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		if !tableReachable(ctx, cli, table) {
			return nil, err
		}
		logrus.WithError(err).WithField("table", table).
			Warn("could not create table, using the existing one")
	}
	return &Gateway{table: table, cli: cli, feed: feed, now: time.Now}, nil
}

func (g *Gateway) GetDoc(ctx context.Context, id string) (*types.Client, error) {
	out, err := g.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &g.table,
		ConsistentRead: aws.Bool(true),
		Key:            docKey(id),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, types.Err(types.ErrNotFound, nil, "no document with id %s", id)
	}
	var doc types.Client
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *Gateway) GetDocs(ctx context.Context) ([]*types.Client, error) {
	docs := make([]*types.Client, 0)
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := g.cli.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &g.table,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			var doc types.Client
			if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
				return nil, err
			}
			docs = append(docs, &doc)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return docs, nil
}

func (g *Gateway) AddDoc(ctx context.Context, client *types.Client) (*types.Client, error) {
	doc := client.Clone()
	doc.ID = uuid.NewString()
	now := g.now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, err
	}
	_, err = g.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &g.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, err
	}

	g.publish(ctx, store.ChangeEvent{Kind: store.ChangePut, ID: doc.ID, Client: doc})
	return doc, nil
}

func (g *Gateway) UpdateDoc(ctx context.Context, id string, patch store.DocPatch) (*types.Client, error) {
	expr, names, values, err := g.buildUpdate(patch)
	if err != nil {
		return nil, err
	}

	out, err := g.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &g.table,
		Key:                       docKey(id),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ReturnValues:              ddbtypes.ReturnValueAllNew,
	})
	if err != nil {
		var cc *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return nil, types.Err(types.ErrNotFound, nil, "no document with id %s", id)
		}
		return nil, err
	}

	var doc types.Client
	if err := attributevalue.UnmarshalMap(out.Attributes, &doc); err != nil {
		return nil, err
	}
	g.publish(ctx, store.ChangeEvent{Kind: store.ChangePut, ID: id, Client: &doc})
	return &doc, nil
}

func (g *Gateway) DeleteDoc(ctx context.Context, id string) error {
	_, err := g.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           &g.table,
		Key:                 docKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var cc *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return types.Err(types.ErrNotFound, nil, "no document with id %s", id)
		}
		return err
	}

	g.publish(ctx, store.ChangeEvent{Kind: store.ChangeDelete, ID: id})
	return nil
}

// BatchUpdate runs every patch inside one TransactWriteItems call, so either
// all documents get their patch and fresh updatedAt, or none do.
func (g *Gateway) BatchUpdate(ctx context.Context, updates []store.DocUpdate) error {
	items := make([]ddbtypes.TransactWriteItem, 0, len(updates))
	for _, u := range updates {
		expr, names, values, err := g.buildUpdate(u.Data)
		if err != nil {
			return err
		}
		items = append(items, ddbtypes.TransactWriteItem{
			Update: &ddbtypes.Update{
				TableName:                 &g.table,
				Key:                       docKey(u.ID),
				UpdateExpression:          aws.String(expr),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
				ConditionExpression:       aws.String("attribute_exists(id)"),
			},
		})
	}

	_, err := g.cli.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var tc *ddbtypes.TransactionCanceledException
		if errors.As(err, &tc) {
			for _, reason := range tc.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return types.Err(types.ErrNotFound, err, "batch update hit a missing document")
				}
			}
		}
		return err
	}

	// Best-effort: fan the committed states out to subscribers.
	for _, u := range updates {
		doc, err := g.GetDoc(ctx, u.ID)
		if err != nil {
			logrus.WithError(err).WithField("id", u.ID).
				Warn("failed to read back batch-updated document for change feed")
			continue
		}
		g.publish(ctx, store.ChangeEvent{Kind: store.ChangePut, ID: u.ID, Client: doc})
	}
	return nil
}

func (g *Gateway) Subscribe(ctx context.Context, id string, onChange store.ChangeFunc) (store.Unsubscribe, error) {
	if g.feed == nil {
		return nil, types.Err(types.ErrStore, nil, "gateway has no change feed configured")
	}
	return g.feed.Subscribe(ctx, id, func(ev store.ChangeEvent) {
		onChange(ev.Client)
	})
}

// buildUpdate turns a DocPatch into a SET expression. updatedAt is always
// stamped with the gateway's clock, the closest this layer gets to a
// server-assigned timestamp.
func (g *Gateway) buildUpdate(patch store.DocPatch) (string, map[string]string, map[string]ddbtypes.AttributeValue, error) {
	expr := "SET #ua = :ua"
	names := map[string]string{"#ua": "updatedAt"}
	ts, err := attributevalue.Marshal(g.now().UTC())
	if err != nil {
		return "", nil, nil, err
	}
	values := map[string]ddbtypes.AttributeValue{":ua": ts}

	if patch.Name != nil {
		av, err := attributevalue.Marshal(*patch.Name)
		if err != nil {
			return "", nil, nil, err
		}
		expr += ", #nm = :nm"
		names["#nm"] = "name"
		values[":nm"] = av
	}
	if patch.Metrics != nil {
		av, err := attributevalue.Marshal(patch.Metrics)
		if err != nil {
			return "", nil, nil, err
		}
		expr += ", #mt = :mt"
		names["#mt"] = "metrics"
		values[":mt"] = av
	}
	if patch.UIPreferences != nil {
		av, err := attributevalue.Marshal(patch.UIPreferences)
		if err != nil {
			return "", nil, nil, err
		}
		expr += ", #up = :up"
		names["#up"] = "uiPreferences"
		values[":up"] = av
	}
	return expr, names, values, nil
}

func (g *Gateway) publish(ctx context.Context, ev store.ChangeEvent) {
	if g.feed == nil {
		return
	}
	if err := g.feed.Publish(ctx, ev); err != nil {
		logrus.WithError(err).WithField("id", ev.ID).Warn("failed to publish change event")
	}
}

func docKey(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"id": &ddbtypes.AttributeValueMemberS{Value: id},
	}
}
