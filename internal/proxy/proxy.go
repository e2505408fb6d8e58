// Package proxy forwards tenant calls to the per-instance connector
// endpoint on whichever node currently hosts it.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/guonaihong/gout"
	"github.com/talkgrid/waplane/internal/domain"
	"go.uber.org/zap"
)

// ErrUpstreamUnreachable marks a connection failure to the hosting node,
// distinct from any error response the connector itself returns.
var ErrUpstreamUnreachable = errors.New("instance upstream unreachable")

// Result is the connector's response, passed through verbatim.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
}

// Forwarder resolves instances to their node's public endpoint and relays
// requests.
type Forwarder struct {
	// Scheme is https in production; tests run plain http upstreams.
	Scheme string
	g      *gout.Client
}

// New returns a Forwarder speaking https to node public hosts.
func New() *Forwarder {
	return &Forwarder{Scheme: "https", g: gout.NewWithOpt(gout.WithClient(&http.Client{}))}
}

type respHeader struct {
	ContentType string `header:"Content-Type"`
}

// Forward relays method+body to the instance path on the hosting node and
// returns the connector's status, content type and body unchanged. Only a
// transport-level failure becomes ErrUpstreamUnreachable; connector 4xx/5xx
// are results, not errors.
func (f *Forwarder) Forward(ctx context.Context, node *domain.Node, instanceID int64, path, method string, body []byte) (*Result, error) {
	url := fmt.Sprintf("%s://%s/instances/%d/%s",
		f.Scheme, node.PublicHost, instanceID, strings.TrimPrefix(path, "/"))

	var (
		code int
		out  []byte
		hdr  respHeader
	)
	df := f.g.GET(url)
	switch method {
	case http.MethodPost:
		df = f.g.POST(url)
		if len(body) > 0 {
			df = df.SetHeader(gout.H{"Content-Type": "application/json"}).SetBody(body)
		}
	case http.MethodGet:
		// default
	default:
		return nil, fmt.Errorf("proxy: unsupported method %s", method)
	}

	err := df.WithContext(ctx).Code(&code).BindBody(&out).BindHeader(&hdr).Do()
	if err != nil {
		zap.L().Warn("proxy upstream unreachable",
			zap.Int64("instance_id", instanceID),
			zap.String("node", node.Name),
			zap.String("url", url),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnreachable, node.PublicHost, err)
	}
	return &Result{Status: code, ContentType: hdr.ContentType, Body: out}, nil
}
