package components

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// DefaultToastTTL is how long a toast stays on screen.
const DefaultToastTTL = 5 * time.Second

// ToastLevel is the severity of a toast.
type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastError
)

// Toast is one notification.
type Toast struct {
	Level     ToastLevel
	Message   string
	CreatedAt time.Time
}

// Toaster keeps the visible notifications. It is safe for concurrent use
// because mutations report failures from command goroutines.
type Toaster struct {
	mu     sync.Mutex
	toasts []Toast
	ttl    time.Duration
	now    func() time.Time
	width  int
}

// NewToaster creates a Toaster whose toasts expire after ttl. A zero ttl
// selects DefaultToastTTL.
func NewToaster(ttl time.Duration) *Toaster {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &Toaster{ttl: ttl, now: time.Now}
}

// SetClock overrides the time source.
func (t *Toaster) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// SetWidth sets the maximum toast width.
func (t *Toaster) SetWidth(width int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width = width
}

// Error shows an error toast and logs it.
func (t *Toaster) Error(message string) {
	logger.Error("Notification", "error", message)
	t.add(ToastError, message)
}

// Info shows an informational toast.
func (t *Toaster) Info(message string) {
	t.add(ToastInfo, message)
}

func (t *Toaster) add(level ToastLevel, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts = append(t.toasts, Toast{Level: level, Message: message, CreatedAt: t.now()})
}

// Active drops expired toasts and returns the rest, oldest first.
func (t *Toaster) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	kept := t.toasts[:0]
	for _, toast := range t.toasts {
		if now.Sub(toast.CreatedAt) < t.ttl {
			kept = append(kept, toast)
		}
	}
	t.toasts = kept
	return append([]Toast(nil), kept...)
}

// View renders the active toasts stacked vertically.
func (t *Toaster) View() string {
	active := t.Active()
	if len(active) == 0 {
		return ""
	}

	t.mu.Lock()
	width := t.width
	t.mu.Unlock()
	if width <= 0 || width > 60 {
		width = 60
	}

	rendered := make([]string, 0, len(active))
	for _, toast := range active {
		bg := styles.ColorToastInfoBg
		if toast.Level == ToastError {
			bg = styles.ColorToastErrorBg
		}
		rendered = append(rendered, lipgloss.NewStyle().
			Background(bg).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1).
			Width(width).
			Render(toast.Message))
	}
	return strings.Join(rendered, "\n")
}
