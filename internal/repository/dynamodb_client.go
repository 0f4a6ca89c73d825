package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"pitchcraft/internal/domain"
)

const (
	// OwnerIndex is the GSI keyed by uid (partition) and createdAt (sort).
	OwnerIndex = "uid-createdAt-index"

	// Fixed-width so createdAt sorts lexically in the owner index.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps one item per pitch in a DynamoDB table keyed by id.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	opts      options
}

var _ Store = (*DynamoStore)(nil)

// New creates a DynamoDB-backed Store.
func New(api dynamodbAPI, tableName string, opts ...Option) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &DynamoStore{api: api, tableName: tableName, opts: o}, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

// Create writes a new item. The id is generated client-side and guarded with
// attribute_not_exists so an id collision never overwrites a pitch.
func (s *DynamoStore) Create(ctx context.Context, ownerID string, turns []domain.Turn, tone domain.Tone) (string, error) {
	if ownerID == "" {
		return "", errors.New("repository: Create: owner id is required")
	}
	doc := domain.NewDocument(ownerID, turns, tone, s.opts.now())
	doc.ID = s.opts.newID()

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     documentItem(doc),
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		return "", fmt.Errorf("repository: Create: %w", err)
	}
	return doc.ID, nil
}

// Update overwrites turns, tone and the derived fields of an existing item.
// The write is conditional on the version the caller read; items written
// before versioning match version 0.
func (s *DynamoStore) Update(ctx context.Context, id string, version int64, turns []domain.Turn, tone domain.Tone) (int64, error) {
	response, landing := domain.DerivedFields(turns)
	next := version + 1
	values := map[string]types.AttributeValue{
		":turns":       turnsAttr(turns),
		":tone":        &types.AttributeValueMemberS{Value: string(tone)},
		":updatedAt":   timeAttr(s.opts.now()),
		":response":    &types.AttributeValueMemberS{Value: response},
		":landingCode": &types.AttributeValueMemberS{Value: landing},
		":next":        numAttr(next),
	}
	condition := "attribute_exists(#id) AND attribute_not_exists(#version)"
	if version > 0 {
		condition = "attribute_exists(#id) AND #version = :prev"
		values[":prev"] = numAttr(version)
	}
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 idKey(id),
		ConditionExpression: aws.String(condition),
		UpdateExpression:    aws.String("SET #turns = :turns, #tone = :tone, #updatedAt = :updatedAt, #response = :response, #landingCode = :landingCode, #version = :next REMOVE #idea"),
		ExpressionAttributeNames: map[string]string{
			"#id":          "id",
			"#turns":       "turns",
			"#tone":        "tone",
			"#updatedAt":   "updatedAt",
			"#response":    "response",
			"#landingCode": "landingCode",
			"#idea":        "idea",
			"#version":     "version",
		},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return 0, fmt.Errorf("repository: Update: %w", mapVersionConflict(err))
	}
	return next, nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (domain.Session, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, ErrNotFound
	}
	doc, err := itemToDocument(out.Item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Get unmarshal: %w", err)
	}
	return doc.Session(), nil
}

// ListByOwner reads the owner index newest first. When the index query fails
// (missing or still backfilling index) it scans with a uid filter and sorts
// client side.
func (s *DynamoStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Session, error) {
	items, err := s.queryOwner(ctx, ownerID)
	if err != nil {
		slog.WarnContext(ctx, "ordered owner query failed; falling back to scan", "owner_id", ownerID, "index", OwnerIndex, "err", err)
		items, err = s.scanOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("repository: ListByOwner scan: %w", err)
		}
		sessions, err := itemsToSessions(items)
		if err != nil {
			return nil, err
		}
		sortNewestFirst(sessions)
		return sessions, nil
	}
	return itemsToSessions(items)
}

func (s *DynamoStore) queryOwner(ctx context.Context, ownerID string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(s.tableName),
			IndexName:                aws.String(OwnerIndex),
			KeyConditionExpression:   aws.String("#uid = :uid"),
			ExpressionAttributeNames: map[string]string{"#uid": "uid"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: ownerID},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) scanOwner(ctx context.Context, ownerID string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(s.tableName),
			FilterExpression:         aws.String("#uid = :uid"),
			ExpressionAttributeNames: map[string]string{"#uid": "uid"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: ownerID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       idKey(id),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete: %w", err)
	}
	return nil
}

func (s *DynamoStore) Rename(ctx context.Context, id, displayName string) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		UpdateExpression:    aws.String("SET #customName = :customName"),
		ExpressionAttributeNames: map[string]string{
			"#id":         "id",
			"#customName": "customName",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":customName": &types.AttributeValueMemberS{Value: displayName},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Rename: %w", mapConditionFailed(err))
	}
	return nil
}

func mapConditionFailed(err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	return err
}

// mapVersionConflict tells a missing item from one whose version moved on,
// using the old image DynamoDB returns with the failed condition.
func mapVersionConflict(err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return err
}

func itemsToSessions(items []map[string]types.AttributeValue) ([]domain.Session, error) {
	sessions := make([]domain.Session, 0, len(items))
	for _, item := range items {
		doc, err := itemToDocument(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListByOwner unmarshal: %w", err)
		}
		sessions = append(sessions, doc.Session())
	}
	return sessions, nil
}

// ---------------------------------------------------------------------------
// item encoding
// ---------------------------------------------------------------------------

func documentItem(doc domain.PitchDocument) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"id":          &types.AttributeValueMemberS{Value: doc.ID},
		"uid":         &types.AttributeValueMemberS{Value: doc.UID},
		"tone":        &types.AttributeValueMemberS{Value: string(doc.Tone)},
		"turns":       turnsAttr(doc.Turns),
		"response":    &types.AttributeValueMemberS{Value: doc.Response},
		"landingCode": &types.AttributeValueMemberS{Value: doc.LandingCode},
		"createdAt":   timeAttr(doc.CreatedAt),
		"updatedAt":   timeAttr(doc.UpdatedAt),
		"version":     numAttr(doc.Version),
	}
	if doc.CustomName != "" {
		item["customName"] = &types.AttributeValueMemberS{Value: doc.CustomName}
	}
	return item
}

func turnsAttr(turns []domain.Turn) types.AttributeValue {
	list := make([]types.AttributeValue, 0, len(turns))
	for _, t := range turns {
		m := map[string]types.AttributeValue{
			"id":             &types.AttributeValueMemberS{Value: t.ID},
			"role":           &types.AttributeValueMemberS{Value: string(t.Role)},
			"text":           &types.AttributeValueMemberS{Value: t.Text},
			"isLatestAnswer": &types.AttributeValueMemberBOOL{Value: t.IsLatestAnswer},
			"createdAt":      timeAttr(t.CreatedAt),
		}
		if t.LandingMarkup != nil {
			m["landingMarkup"] = &types.AttributeValueMemberS{Value: *t.LandingMarkup}
		}
		list = append(list, &types.AttributeValueMemberM{Value: m})
	}
	return &types.AttributeValueMemberL{Value: list}
}

func numAttr(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func timeAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(timeLayout)}
}

// itemToDocument converts a DynamoDB attribute map to the stored document
// shape. Legacy items carry idea/response/landingCode and no turns.
func itemToDocument(item map[string]types.AttributeValue) (domain.PitchDocument, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.PitchDocument{}, err
	}
	uid, err := strAttr(item, "uid")
	if err != nil {
		return domain.PitchDocument{}, err
	}
	createdAt, err := timeAttrValue(item, "createdAt")
	if err != nil {
		return domain.PitchDocument{}, err
	}
	doc := domain.PitchDocument{
		ID:          id,
		UID:         uid,
		Idea:        optStr(item, "idea"),
		Tone:        domain.Tone(optStr(item, "tone")),
		Response:    optStr(item, "response"),
		LandingCode: optStr(item, "landingCode"),
		CustomName:  optStr(item, "customName"),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if _, ok := item["updatedAt"]; ok {
		if doc.UpdatedAt, err = timeAttrValue(item, "updatedAt"); err != nil {
			return domain.PitchDocument{}, err
		}
	}
	if v, ok := item["version"].(*types.AttributeValueMemberN); ok {
		if doc.Version, err = strconv.ParseInt(v.Value, 10, 64); err != nil {
			return domain.PitchDocument{}, fmt.Errorf("repository: parse attribute \"version\": %w", err)
		}
	}
	if v, ok := item["turns"]; ok {
		if doc.Turns, err = decodeTurns(v, createdAt); err != nil {
			return domain.PitchDocument{}, err
		}
	}
	return doc, nil
}

func decodeTurns(v types.AttributeValue, fallback time.Time) ([]domain.Turn, error) {
	list, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, errors.New("repository: attribute \"turns\" is not a list")
	}
	turns := make([]domain.Turn, 0, len(list.Value))
	for i, raw := range list.Value {
		m, ok := raw.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("repository: turn %d is not a map", i)
		}
		id, err := strAttr(m.Value, "id")
		if err != nil {
			return nil, fmt.Errorf("repository: turn %d: %w", i, err)
		}
		role, err := strAttr(m.Value, "role")
		if err != nil {
			return nil, fmt.Errorf("repository: turn %d: %w", i, err)
		}
		turn := domain.Turn{
			ID:        id,
			Role:      domain.Role(role),
			Text:      optStr(m.Value, "text"),
			CreatedAt: fallback,
		}
		if b, ok := m.Value["isLatestAnswer"].(*types.AttributeValueMemberBOOL); ok {
			turn.IsLatestAnswer = b.Value
		}
		if s, ok := m.Value["landingMarkup"].(*types.AttributeValueMemberS); ok {
			markup := s.Value
			turn.LandingMarkup = &markup
		}
		if _, ok := m.Value["createdAt"]; ok {
			if turn.CreatedAt, err = timeAttrValue(m.Value, "createdAt"); err != nil {
				return nil, fmt.Errorf("repository: turn %d: %w", i, err)
			}
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func optStr(item map[string]types.AttributeValue, key string) string {
	s, _ := strAttr(item, key)
	return s
}

func timeAttrValue(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t.UTC(), nil
}
