package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/connect-dcc/datadestruction/pkg/errs"
	"github.com/connect-dcc/datadestruction/pkg/service"
	"github.com/goccy/go-json"
)

type DestructionHandler struct {
	service service.DestructionService
}

// destroyRowsRequest keeps both fields raw so their JSON types can be
// checked explicitly. The shape rules and messages are part of the API
// contract, a struct-level unmarshal would collapse them into one generic
// decoding error.
type destroyRowsRequest struct {
	Protocol   json.RawMessage `json:"protocol"`
	ConnectIDs json.RawMessage `json:"connect_ids"`
}

const (
	msgInvalidProtocol   = "Missing or invalid parameter: protocol (str)"
	msgInvalidConnectIDs = "connect_ids must be a list of strings"
)

var jsonNull = []byte("null")

// parse applies the shape rules in order, first failure wins: protocol
// must be a non-empty JSON string, connect_ids must be a JSON array of
// strings. An empty array is valid and serves as a liveness probe.
// Identifiers are passed through exactly as supplied, no trimming or
// case folding.
func (in destroyRowsRequest) parse() (*service.DestructionRequest, error) {
	var protocol string
	if in.Protocol == nil || bytes.Equal(in.Protocol, jsonNull) {
		return nil, errors.New(msgInvalidProtocol)
	}

	if err := json.Unmarshal(in.Protocol, &protocol); err != nil || protocol == "" {
		return nil, errors.New(msgInvalidProtocol)
	}

	var connectIDs []string
	if in.ConnectIDs == nil || bytes.Equal(in.ConnectIDs, jsonNull) {
		return nil, errors.New(msgInvalidConnectIDs)
	}

	if err := json.Unmarshal(in.ConnectIDs, &connectIDs); err != nil {
		return nil, errors.New(msgInvalidConnectIDs)
	}

	return &service.DestructionRequest{
		Protocol:   protocol,
		ConnectIDs: connectIDs,
	}, nil
}

func (h *DestructionHandler) DestroyRows(ctx context.Context, _ *http.Request, in destroyRowsRequest) (*service.DestructionResponse, error) {
	const op errs.Op = "DestructionHandler.DestroyRows"

	req, err := in.parse()
	if err != nil {
		return nil, errs.E(errs.Validation, op, err)
	}

	result, err := h.service.DestroyRows(ctx, req.Protocol, req.ConnectIDs)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return destructionResponse(result), nil
}

func destructionResponse(result *service.DestructionResult) *service.DestructionResponse {
	notFound := result.NotFound
	if notFound == nil {
		notFound = []string{}
	}

	if len(result.DeletedIDs) == 0 {
		return &service.DestructionResponse{
			Message:  "No matching Connect_IDs found",
			NotFound: notFound,
		}
	}

	return &service.DestructionResponse{
		Message: fmt.Sprintf("Deleted %d records from %s.%s.%s",
			len(result.DeletedIDs), result.ProjectID, result.Target.Dataset, result.Target.Table),
		DeletedIDs: result.DeletedIDs,
		NotFound:   notFound,
	}
}

func NewDestructionHandler(service service.DestructionService) *DestructionHandler {
	return &DestructionHandler{service: service}
}
