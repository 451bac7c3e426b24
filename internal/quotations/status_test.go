package quotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionClosure(t *testing.T) {
	allowed := map[Status][]Status{
		StatusDraft: {StatusSent, StatusAccepted, StatusCancelled},
		StatusSent:  {StatusAccepted, StatusRejected},
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := false
			for _, a := range allowed[from] {
				want = want || a == to
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatusEditability(t *testing.T) {
	editable := map[Status]bool{StatusDraft: true, StatusSent: true}
	for _, st := range AllStatuses {
		assert.Equal(t, editable[st], st.CanEdit(), st)
		assert.Equal(t, !editable[st], st.IsTerminal(), st)
	}
}

func TestStatusCapabilities(t *testing.T) {
	assert.Equal(t, "quotation.send", StatusSent.RequiredCapability())
	assert.Equal(t, "quotation.approve", StatusAccepted.RequiredCapability())
	assert.Equal(t, "quotation.reject", StatusRejected.RequiredCapability())
	assert.Equal(t, "quotation.cancel", StatusCancelled.RequiredCapability())
}
