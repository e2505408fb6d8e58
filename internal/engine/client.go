// Package engine is a minimal client for the container engine REST API of a
// single node. A client is a pure function of the node's engine address; it
// holds no state beyond the underlying HTTP transport.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/guonaihong/gout"
	"go.uber.org/zap"
)

// Client speaks the container engine HTTP protocol against one node.
type Client struct {
	addr string
	base string
	g    *gout.Client
}

// New builds a client for the given engine address. Supported forms:
// "unix:///var/run/docker.sock", "tcp://host:port", "http://host:port"
// and a bare "host:port".
func New(addr string) (*Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("engine address is empty")
	}
	httpc := &http.Client{}
	base := ""
	switch {
	case strings.HasPrefix(addr, "unix://"):
		socket := strings.TrimPrefix(addr, "unix://")
		httpc.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		base = "http://localhost"
	case strings.HasPrefix(addr, "tcp://"):
		base = "http://" + strings.TrimPrefix(addr, "tcp://")
	case strings.HasPrefix(addr, "http://"), strings.HasPrefix(addr, "https://"):
		base = addr
	default:
		base = "http://" + addr
	}
	return &Client{addr: addr, base: strings.TrimSuffix(base, "/"), g: gout.NewWithOpt(gout.WithClient(httpc))}, nil
}

// Addr returns the engine address this client targets.
func (c *Client) Addr() string {
	return c.addr
}

// finish classifies the response: 2xx decodes into out (when non-nil),
// anything else becomes an *APIError carrying the engine-reported reason.
func (c *Client) finish(op string, code int, body []byte, out interface{}) error {
	if code >= 200 && code < 300 {
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("engine %s: decode response: %w", op, err)
			}
		}
		return nil
	}
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	if er.Message == "" {
		er.Message = strings.TrimSpace(string(body))
	}
	return &APIError{Op: op, Status: code, Reason: er.Message}
}

// ListContainers returns container summaries, optionally restricted to one
// label filter ("key=value") and optionally including stopped containers.
func (c *Client) ListContainers(ctx context.Context, labelFilter string, includeStopped bool) ([]ContainerSummary, error) {
	query := gout.H{}
	if includeStopped {
		query["all"] = "1"
	}
	if labelFilter != "" {
		filters, _ := json.Marshal(map[string][]string{"label": {labelFilter}})
		query["filters"] = string(filters)
	}
	var (
		code int
		body []byte
	)
	err := c.g.GET(c.base+"/containers/json").WithContext(ctx).
		SetQuery(query).Code(&code).BindBody(&body).Do()
	if err != nil {
		return nil, fmt.Errorf("engine list containers on %s: %w", c.addr, err)
	}
	var list []ContainerSummary
	if err := c.finish("list containers", code, body, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateContainer creates a container with the given deterministic name and
// returns the new container id.
func (c *Client) CreateContainer(ctx context.Context, name string, spec CreateSpec) (string, error) {
	var (
		code int
		body []byte
	)
	err := c.g.POST(c.base+"/containers/create").WithContext(ctx).
		SetQuery(gout.H{"name": name}).SetJSON(spec).Code(&code).BindBody(&body).Do()
	if err != nil {
		return "", fmt.Errorf("engine create container on %s: %w", c.addr, err)
	}
	var created createResponse
	if err := c.finish("create container", code, body, &created); err != nil {
		return "", err
	}
	for _, w := range created.Warnings {
		zap.L().Warn("engine create container warning", zap.String("node", c.addr), zap.String("warning", w))
	}
	return created.Id, nil
}

// StartContainer starts a created container. Already-running (304) is
// success.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	var (
		code int
		body []byte
	)
	err := c.g.POST(c.base+"/containers/"+id+"/start").WithContext(ctx).
		Code(&code).BindBody(&body).Do()
	if err != nil {
		return fmt.Errorf("engine start container on %s: %w", c.addr, err)
	}
	if err := c.finish("start container", code, body, nil); err != nil {
		if IsNotModified(err) {
			return nil
		}
		return err
	}
	return nil
}

// StopContainer stops a container with the given grace period, after which
// the engine kills it. Already-stopped (304) and missing (404) containers
// are success: teardown paths must stay retryable.
func (c *Client) StopContainer(ctx context.Context, id string, graceSeconds int) error {
	var (
		code int
		body []byte
	)
	err := c.g.POST(c.base+"/containers/"+id+"/stop").WithContext(ctx).
		SetQuery(gout.H{"t": graceSeconds}).Code(&code).BindBody(&body).Do()
	if err != nil {
		return fmt.Errorf("engine stop container on %s: %w", c.addr, err)
	}
	if err := c.finish("stop container", code, body, nil); err != nil {
		if IsNotModified(err) || IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// RemoveContainer removes a stopped container. Missing (404) is success.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	var (
		code int
		body []byte
	)
	err := c.g.DELETE(c.base+"/containers/"+id).WithContext(ctx).
		SetQuery(gout.H{"v": "1"}).Code(&code).BindBody(&body).Do()
	if err != nil {
		return fmt.Errorf("engine remove container on %s: %w", c.addr, err)
	}
	if err := c.finish("remove container", code, body, nil); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// InspectContainer returns the full container detail.
func (c *Client) InspectContainer(ctx context.Context, id string) (*ContainerDetail, error) {
	var (
		code int
		body []byte
	)
	err := c.g.GET(c.base+"/containers/"+id+"/json").WithContext(ctx).
		Code(&code).BindBody(&body).Do()
	if err != nil {
		return nil, fmt.Errorf("engine inspect container on %s: %w", c.addr, err)
	}
	var detail ContainerDetail
	if err := c.finish("inspect container", code, body, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListImages returns local images matching the exact reference.
func (c *Client) ListImages(ctx context.Context, reference string) ([]ImageSummary, error) {
	query := gout.H{}
	if reference != "" {
		filters, _ := json.Marshal(map[string][]string{"reference": {reference}})
		query["filters"] = string(filters)
	}
	var (
		code int
		body []byte
	)
	err := c.g.GET(c.base+"/images/json").WithContext(ctx).
		SetQuery(query).Code(&code).BindBody(&body).Do()
	if err != nil {
		return nil, fmt.Errorf("engine list images on %s: %w", c.addr, err)
	}
	var list []ImageSummary
	if err := c.finish("list images", code, body, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PullImage pulls an image onto the node. The engine streams progress
// events; the call returns once the stream is fully consumed, so a
// successful return means the image is present.
func (c *Client) PullImage(ctx context.Context, reference string) error {
	image, tag := splitImageTag(reference)
	var (
		code int
		body []byte
	)
	err := c.g.POST(c.base+"/images/create").WithContext(ctx).
		SetQuery(gout.H{"fromImage": image, "tag": tag}).Code(&code).BindBody(&body).Do()
	if err != nil {
		return fmt.Errorf("engine pull image %s on %s: %w", reference, c.addr, err)
	}
	return c.finish("pull image", code, body, nil)
}

// Ping checks engine API reachability.
func (c *Client) Ping(ctx context.Context) error {
	var (
		code int
		body []byte
	)
	err := c.g.GET(c.base+"/_ping").WithContext(ctx).Code(&code).BindBody(&body).Do()
	if err != nil {
		return fmt.Errorf("engine ping %s: %w", c.addr, err)
	}
	return c.finish("ping", code, body, nil)
}

// splitImageTag separates "repo/name:tag" into name and tag, defaulting the
// tag to "latest". The colon of a registry port is not a tag separator.
func splitImageTag(reference string) (string, string) {
	idx := strings.LastIndex(reference, ":")
	if idx < 0 || strings.Contains(reference[idx:], "/") {
		return reference, "latest"
	}
	return reference[:idx], reference[idx+1:]
}
