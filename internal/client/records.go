package client

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"

	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/internal/http"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// RecordsClient implements dataverse.RecordsClient.
type RecordsClient struct {
	httpClient *http.Client
	tables     *TablesClient
	pageSize   int
	logger     dataverse.Logger
}

// NewRecordsClient creates a new records client.
func NewRecordsClient(httpClient *http.Client, tables *TablesClient, pageSize int, logger dataverse.Logger) *RecordsClient {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}

	return &RecordsClient{
		httpClient: httpClient,
		tables:     tables,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// Create implements dataverse.RecordsClient.Create.
func (c *RecordsClient) Create(ctx context.Context, table string, record dataverse.Record) (string, error) {
	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Post(ctx, collectionPath(info), record)
	if err != nil {
		return "", fmt.Errorf("creating %s record: %w", table, err)
	}

	id := resp.EntityID()
	if id == "" {
		return "", dataverse.ErrMissingEntityID
	}

	return id, nil
}

// CreateReturning implements dataverse.RecordsClient.CreateReturning.
func (c *RecordsClient) CreateReturning(ctx context.Context, table string, record dataverse.Record) (dataverse.Record, error) {
	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method:  nethttp.MethodPost,
		Path:    collectionPath(info),
		Body:    record,
		Headers: map[string]string{constants.HeaderPrefer: constants.PreferReturnRepresentation},
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s record: %w", table, err)
	}

	return decodeRecord(resp.Body)
}

// CreateMany implements dataverse.RecordsClient.CreateMany. All records go
// out in one CreateMultiple call; ids come back in input order.
func (c *RecordsClient) CreateMany(ctx context.Context, table string, records []dataverse.Record) ([]string, error) {
	switch classifyCreate(records) {
	case shapeEmpty:
		return []string{}, nil
	case shapeSingle:
		id, err := c.Create(ctx, table, records[0])
		if err != nil {
			return nil, err
		}

		return []string{id}, nil
	default:
	}

	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return nil, err
	}

	targets := make([]dataverse.Record, 0, len(records))
	for _, record := range records {
		target := record.Clone()
		target["@odata.type"] = info.TypeToken()
		targets = append(targets, target)
	}

	path := collectionPath(info) + "/" + constants.ActionCreateMultiple

	resp, err := c.httpClient.Post(ctx, path, map[string]interface{}{"Targets": targets})
	if err != nil {
		return nil, fmt.Errorf("bulk creating %s records: %w", table, err)
	}

	var result struct {
		IDs []string `json:"Ids"`
	}

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing CreateMultiple response: %w", err)
	}

	return result.IDs, nil
}

// Get implements dataverse.RecordsClient.Get.
func (c *RecordsClient) Get(ctx context.Context, table, id string, options *dataverse.QueryOptions) (dataverse.Record, error) {
	if id == "" {
		return nil, dataverse.ErrRecordIDRequired
	}

	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Get(ctx, recordPath(info, id), options.ToValues())
	if err != nil {
		return nil, fmt.Errorf("getting %s record %s: %w", table, id, err)
	}

	return decodeRecord(resp.Body)
}

// Update implements dataverse.RecordsClient.Update. If-Match: * makes the
// request an update only, never an upsert.
func (c *RecordsClient) Update(ctx context.Context, table, id string, changes dataverse.Record) error {
	_, err := c.update(ctx, table, id, changes, false)

	return err
}

// UpdateReturning implements dataverse.RecordsClient.UpdateReturning.
func (c *RecordsClient) UpdateReturning(ctx context.Context, table, id string, changes dataverse.Record) (dataverse.Record, error) {
	return c.update(ctx, table, id, changes, true)
}

func (c *RecordsClient) update(ctx context.Context, table, id string, changes dataverse.Record, returning bool) (dataverse.Record, error) {
	if id == "" {
		return nil, dataverse.ErrRecordIDRequired
	}

	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{constants.HeaderIfMatch: "*"}
	if returning {
		headers[constants.HeaderPrefer] = constants.PreferReturnRepresentation
	}

	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method:  nethttp.MethodPatch,
		Path:    recordPath(info, id),
		Body:    changes,
		Headers: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("updating %s record %s: %w", table, id, err)
	}

	if !returning {
		return nil, nil
	}

	return decodeRecord(resp.Body)
}

// UpdateMany implements dataverse.RecordsClient.UpdateMany. The shape of the
// request is validated before any network call: one change set broadcasts to
// every id, n change sets pair with n ids, anything else is rejected.
func (c *RecordsClient) UpdateMany(ctx context.Context, table string, ids []string, changes []dataverse.Record) error {
	shape, err := classifyUpdate(ids, changes)
	if err != nil {
		return err
	}

	switch shape {
	case shapeEmpty:
		return nil
	case shapeSingle:
		return c.Update(ctx, table, ids[0], changes[0])
	default:
	}

	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return err
	}

	targets := make([]dataverse.Record, 0, len(ids))

	for i, id := range ids {
		change := changes[0]
		if shape == shapePairwise {
			change = changes[i]
		}

		target := change.Clone()
		target["@odata.type"] = info.TypeToken()
		target[info.PrimaryIDAttribute()] = id
		targets = append(targets, target)
	}

	path := collectionPath(info) + "/" + constants.ActionUpdateMultiple

	_, err = c.httpClient.Post(ctx, path, map[string]interface{}{"Targets": targets})
	if err != nil {
		return fmt.Errorf("bulk updating %s records: %w", table, err)
	}

	return nil
}

// Delete implements dataverse.RecordsClient.Delete.
func (c *RecordsClient) Delete(ctx context.Context, table, id string) error {
	if id == "" {
		return dataverse.ErrRecordIDRequired
	}

	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Do(ctx, &http.Request{
		Method:  nethttp.MethodDelete,
		Path:    recordPath(info, id),
		Headers: map[string]string{constants.HeaderIfMatch: "*"},
	})
	if err != nil {
		return fmt.Errorf("deleting %s record %s: %w", table, id, err)
	}

	return nil
}

// DeleteMany implements dataverse.RecordsClient.DeleteMany. Synchronous
// per-record deletes are the default: they report failures per id and need
// no admin privilege. The BulkDelete job is opt-in and returns immediately
// with a job handle while the server deletes in the background.
func (c *RecordsClient) DeleteMany(ctx context.Context, table string, ids []string, options *dataverse.DeleteManyOptions) (*dataverse.BulkDeleteJob, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if options == nil || !options.UseBulkDeleteJob {
		for _, id := range ids {
			err := c.Delete(ctx, table, id)
			if err != nil {
				return nil, err
			}
		}

		return nil, nil
	}

	return c.bulkDeleteJob(ctx, table, ids, options.JobName)
}

func (c *RecordsClient) bulkDeleteJob(ctx context.Context, table string, ids []string, jobName string) (*dataverse.BulkDeleteJob, error) {
	info, err := c.tables.Info(ctx, table)
	if err != nil {
		return nil, err
	}

	if jobName == "" {
		jobName = fmt.Sprintf("Bulk delete %d %s records", len(ids), info.LogicalName)
	}

	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}

	payload := map[string]interface{}{
		"QuerySet": []map[string]interface{}{
			{
				"EntityName": info.LogicalName,
				"Criteria": map[string]interface{}{
					"FilterOperator": 0,
					"Conditions": []map[string]interface{}{
						{
							"AttributeName": info.PrimaryIDAttribute(),
							"Operator":      "In",
							"Values":        values,
						},
					},
				},
			},
		},
		"JobName":               jobName,
		"SendEmailNotification": false,
		"RecurrencePattern":     "",
		"StartDateTime":         "1970-01-01T00:00:00Z",
		"ToRecipients":          []string{},
		"CCRecipients":          []string{},
	}

	resp, err := c.httpClient.Post(ctx, "/"+constants.ActionBulkDelete, payload)
	if err != nil {
		return nil, fmt.Errorf("scheduling bulk delete for %s: %w", table, err)
	}

	var job dataverse.BulkDeleteJob

	err = json.Unmarshal(resp.Body, &job)
	if err != nil {
		return nil, fmt.Errorf("parsing BulkDelete response: %w", err)
	}

	return &job, nil
}

// List implements dataverse.RecordsClient.List.
func (c *RecordsClient) List(ctx context.Context, table string, options *dataverse.QueryOptions) *dataverse.RowIterator {
	return dataverse.NewRowIterator(ctx, c, table, options, c.pageSize)
}

// FetchPage implements dataverse.PageFetcher. The first request carries the
// query options; continuation requests replay the opaque next link untouched.
// The page size preference rides on every request.
func (c *RecordsClient) FetchPage(ctx context.Context, req *dataverse.PageRequest) (*dataverse.Page, error) {
	var (
		path  string
		query url.Values
	)

	if req.NextLink != "" {
		path = req.NextLink
	} else {
		info, err := c.tables.Info(ctx, req.Table)
		if err != nil {
			return nil, err
		}

		path = collectionPath(info)
		query = req.Options.ToValues()
	}

	headers := map[string]string{}
	if req.PageSize > 0 {
		headers[constants.HeaderPrefer] = fmt.Sprintf(constants.PreferMaxPageSizeFormat, req.PageSize)
	}

	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method:  nethttp.MethodGet,
		Path:    path,
		Query:   query,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}

	var page dataverse.Page

	err = json.Unmarshal(resp.Body, &page)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	return &page, nil
}

func collectionPath(info *dataverse.TableInfo) string {
	return "/" + info.EntitySetName
}

func recordPath(info *dataverse.TableInfo, id string) string {
	return fmt.Sprintf("/%s(%s)", info.EntitySetName, id)
}

func decodeRecord(body []byte) (dataverse.Record, error) {
	var record dataverse.Record

	err := json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}

	return record, nil
}
