package analytics_test

import (
	"context"
	"testing"
	"time"

	"pneumatic/analytics"
	"pneumatic/es"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func TestTrack(t *testing.T) {
	RegisterTestingT(t)

	indexed := make(chan analytics.EventDocument, 10)
	es.IndexFunc = func(ctx context.Context, index string, docID string, doc interface{}) error {
		Expect(index).To(Equal(analytics.EventIndexName))
		Expect(docID).ToNot(BeEmpty())
		indexed <- doc.(analytics.EventDocument)
		return nil
	}
	defer func() { es.IndexFunc = es.Index }()

	t.Run("should ship the event document asynchronously", func(t *testing.T) {
		actor := session.Identity{ID: 101, AccountID: 1, Name: "owner"}
		analytics.Track(analytics.EventTaskCompleted, map[string]interface{}{"taskId": "3001"}, &actor)

		var doc analytics.EventDocument
		Eventually(func() bool {
			select {
			case doc = <-indexed:
				return true
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond).Should(BeTrue())

		Expect(doc.Event).To(Equal(analytics.EventTaskCompleted))
		Expect(doc.ActorID).To(Equal(types.ID(101)))
		Expect(doc.AccountID).To(Equal(types.ID(1)))
		Expect(doc.Properties["taskId"]).To(Equal("3001"))
		Expect(doc.Timestamp.Time().IsZero()).To(BeFalse())
	})

	t.Run("should skip superuser actions", func(t *testing.T) {
		actor := session.Identity{ID: 1, AccountID: 1, Name: "root", IsSuperuser: true}
		analytics.Track(analytics.EventTaskCompleted, nil, &actor)

		Consistently(func() int { return len(indexed) }, 100*time.Millisecond, 10*time.Millisecond).Should(BeZero())
	})
}
