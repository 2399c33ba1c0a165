package entities

import (
	"time"

	"github.com/aarondl/null/v8"
)

// RequestStatusHistory - журнал переходов заявки. Только пополняется,
// записи никогда не редактируются (аудиторский след).
type RequestStatusHistory struct {
	ID         uint64        `json:"id"`
	RequestID  uint64        `json:"request_id"`
	FromStatus null.String   `json:"from_status"`
	ToStatus   RequestStatus `json:"to_status"`
	ChangedBy  int64         `json:"changed_by"`
	Note       null.String   `json:"note"`
	CreatedAt  time.Time     `json:"created_at"`
}
