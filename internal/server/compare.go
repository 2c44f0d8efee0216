package server

import (
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/invoice-reconciler/internal/report"
)

var errNoDocuments = errors.New("application and invoice documents are required")

// CompareRequest carries two extracted documents.
type CompareRequest struct {
	AppName     string              `json:"app_name"`
	InvName     string              `json:"inv_name"`
	Application *reconcile.Document `json:"application"`
	Invoice     *reconcile.Document `json:"invoice"`
}

// CompareResponse is the JSON form of a comparison.
type CompareResponse struct {
	AppName string           `json:"app_name"`
	InvName string           `json:"inv_name"`
	Result  reconcile.Result `json:"result"`
	Report  string           `json:"report"`
}

type comparer struct {
	renderer *report.Renderer
	logger   *slog.Logger
}

func (c comparer) compare(req CompareRequest) (CompareResponse, error) {
	if req.Application == nil || req.Invoice == nil {
		return CompareResponse{}, errNoDocuments
	}
	ctx := report.NewContext(req.AppName, req.InvName, reconcile.Result{})
	res := reconcile.CompareDocuments(*req.Application, *req.Invoice)
	md, err := c.renderer.RenderComparison(ctx.AppName, ctx.InvName, res)
	if err != nil {
		return CompareResponse{}, err
	}
	c.logger.Info("comparison served",
		"matches", len(res.Matches),
		"only_in_app", len(res.OnlyInApp),
		"only_in_inv", len(res.OnlyInInv),
	)
	return CompareResponse{AppName: ctx.AppName, InvName: ctx.InvName, Result: res, Report: md}, nil
}
