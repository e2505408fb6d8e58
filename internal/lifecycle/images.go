package lifecycle

import (
	"fmt"

	"github.com/talkgrid/waplane/internal/domain"
)

// ErrUnknownProvider is returned when an instance references a provider
// outside the closed enumeration. This is a configuration error: it fails
// fast and is never retried.
var ErrUnknownProvider = fmt.Errorf("unknown connector provider")

// providerImages is the static provider -> connector image table. Adding a
// provider is an edit here plus the domain enum, not a new code path.
var providerImages = map[domain.Provider]string{
	domain.ProviderWhatsmeow: "ghcr.io/talkgrid/waplane-connector-whatsmeow:latest",
	domain.ProviderBaileys:   "ghcr.io/talkgrid/waplane-connector-baileys:latest",
	domain.ProviderWAWebJS:   "ghcr.io/talkgrid/waplane-connector-wawebjs:latest",
	domain.ProviderWABA:      "ghcr.io/talkgrid/waplane-connector-waba:latest",
}

// ImageFor resolves the connector image for a provider.
func ImageFor(p domain.Provider) (string, error) {
	image, ok := providerImages[p]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return image, nil
}
