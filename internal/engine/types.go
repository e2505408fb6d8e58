package engine

// Wire types for the subset of the container engine REST API this client
// speaks. Field names follow the engine's JSON casing.

// ContainerSummary is one entry of the container list endpoint.
type ContainerSummary struct {
	Id     string            `json:"Id"`
	Names  []string          `json:"Names"`
	Image  string            `json:"Image"`
	State  string            `json:"State"`
	Status string            `json:"Status"`
	Labels map[string]string `json:"Labels"`
}

// ContainerState is the runtime state block of an inspected container.
type ContainerState struct {
	Status     string `json:"Status"`
	Running    bool   `json:"Running"`
	ExitCode   int    `json:"ExitCode"`
	StartedAt  string `json:"StartedAt"`
	FinishedAt string `json:"FinishedAt"`
}

// ContainerDetail is the full inspect payload.
type ContainerDetail struct {
	Id     string         `json:"Id"`
	Name   string         `json:"Name"`
	State  ContainerState `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Env    []string          `json:"Env"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	NetworkSettings struct {
		IPAddress string `json:"IPAddress"`
	} `json:"NetworkSettings"`
}

// ImageSummary is one entry of the image list endpoint.
type ImageSummary struct {
	Id       string   `json:"Id"`
	RepoTags []string `json:"RepoTags"`
}

// RestartPolicy of a created container.
type RestartPolicy struct {
	Name string `json:"Name"`
}

// HostConfig carries the resource limits applied at creation time.
type HostConfig struct {
	NanoCpus      int64         `json:"NanoCpus,omitempty"`
	Memory        int64         `json:"Memory,omitempty"`
	RestartPolicy RestartPolicy `json:"RestartPolicy"`
}

// CreateSpec is the container creation request body.
type CreateSpec struct {
	Image      string            `json:"Image"`
	Env        []string          `json:"Env,omitempty"`
	Labels     map[string]string `json:"Labels,omitempty"`
	HostConfig HostConfig        `json:"HostConfig"`
}

type createResponse struct {
	Id       string   `json:"Id"`
	Warnings []string `json:"Warnings"`
}

type errorResponse struct {
	Message string `json:"message"`
}
