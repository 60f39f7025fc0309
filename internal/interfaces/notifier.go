package interfaces

import (
	"github.com/ternarybob/vigil/internal/models"
)

// StatusNotifier receives every unified status record produced by the
// jobs service, for push delivery to connected UIs. Implementations must
// not block; slow consumers drop updates rather than stall polling.
type StatusNotifier interface {
	NotifyStatus(status models.UnifiedStatus)
}
