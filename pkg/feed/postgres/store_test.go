package postgres

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/testcontainers/testcontainers-go"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

var _ = Describe("Store", func() {
	var (
		ctx       context.Context
		store     *Store
		postgresC testcontainers.Container
	)

	BeforeEach(func() {
		ctx = context.Background()
		var dsn string
		var err error

		Eventually(func() error {
			dsn, postgresC, err = setupPostgresContainer(ctx)
			return err
		}, 30*time.Second, 1*time.Second).Should(Succeed(), "failed to start postgres container")

		Eventually(func() error {
			store, err = Open(ctx, dsn, nil)
			return err
		}, 30*time.Second, 1*time.Second).Should(Succeed(), "failed to open store against container")

		Expect(store.Init(ctx, false)).To(Succeed())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
		if postgresC != nil {
			Expect(postgresC.Terminate(ctx)).To(Succeed())
		}
	})

	It("rejects a second Init without force", func() {
		err := store.Init(ctx, false)
		Expect(feed.IsAlreadyInitialized(err)).To(BeTrue())
	})

	It("accepts a second Init with force, wiping prior data", func() {
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			return store.EnsureUser(ctx, tx, "alice", 0)
		})).To(Succeed())

		Expect(store.Init(ctx, true)).To(Succeed())

		var post feed.Post
		var found bool
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			var err error
			post, found, err = store.GetPost(ctx, tx, "does-not-exist")
			return err
		})).To(Succeed())
		Expect(found).To(BeFalse())
		Expect(post).To(Equal(feed.Post{}))
	})

	It("assigns strictly increasing seq numbers in Append, readable via Scan", func() {
		var seqs []int64
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			for i := 0; i < 3; i++ {
				payload, err := feed.EncodePayload(feed.KindAdvanceTick, feed.AdvanceTickPayload{NewTick: int64(i + 1)})
				if err != nil {
					return err
				}
				seq, err := store.Append(ctx, tx, feed.Event{Tick: int64(i + 1), Kind: feed.KindAdvanceTick, Payload: payload})
				if err != nil {
					return err
				}
				seqs = append(seqs, seq)
			}
			return nil
		})).To(Succeed())

		Expect(seqs).To(Equal([]int64{1, 2, 3}))

		it, err := store.Scan(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		defer it.Close()

		var scanned []int64
		for {
			ev, ok, err := it.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			if !ok {
				break
			}
			scanned = append(scanned, ev.Seq)
		}
		Expect(scanned).To(Equal([]int64{1, 2, 3}))
	})

	It("enforces op_id uniqueness as a ConcurrencyError", func() {
		err := store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			payload, err := feed.EncodePayload(feed.KindAction, feed.ActionPayload{
				OpID: "dup-1", ActorID: "alice", ActionType: feed.ActionPost, Body: "hi", Status: feed.StatusAccepted,
			})
			if err != nil {
				return err
			}
			if _, err := store.Append(ctx, tx, feed.Event{Tick: 1, Kind: feed.KindAction, Payload: payload, OpID: "dup-1"}); err != nil {
				return err
			}
			_, err = store.Append(ctx, tx, feed.Event{Tick: 1, Kind: feed.KindAction, Payload: payload, OpID: "dup-1"})
			return err
		})
		Expect(feed.IsConcurrencyError(err)).To(BeTrue())
	})

	It("round-trips a post through CreatePost/GetPost/ListPosts", func() {
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			if err := store.EnsureUser(ctx, tx, "alice", 0); err != nil {
				return err
			}
			return store.CreatePost(ctx, tx, feed.Post{PostID: "p1", AuthorID: "alice", Body: "hello", CreatedTick: 1})
		})).To(Succeed())

		var post feed.Post
		var found bool
		var all []feed.Post
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			var err error
			post, found, err = store.GetPost(ctx, tx, "p1")
			if err != nil {
				return err
			}
			all, err = store.ListPosts(ctx, tx)
			return err
		})).To(Succeed())

		Expect(found).To(BeTrue())
		Expect(post.Body).To(Equal("hello"))
		Expect(all).To(HaveLen(1))
	})

	It("round-trips a timeline exposure with its items", func() {
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			if err := store.EnsureUser(ctx, tx, "alice", 0); err != nil {
				return err
			}
			if err := store.EnsureUser(ctx, tx, "bob", 0); err != nil {
				return err
			}
			if err := store.CreatePost(ctx, tx, feed.Post{PostID: "p1", AuthorID: "alice", Body: "hi", CreatedTick: 0}); err != nil {
				return err
			}
			return store.CreateTimeline(ctx, tx, feed.TimelineExposure{
				TimelineID: "t1", UserID: "bob", Tick: 1, Algorithm: feed.AlgorithmNew, K: 1, Seed: 1,
				Items: []feed.TimelineItemRow{
					{TimelineID: "t1", Position: 0, PostID: "p1", Score: 1.0, Features: feed.Features{Score: 1.0, UpVotes: 0, Age: 1, Algorithm: feed.AlgorithmNew, RankingVersion: 1}},
				},
			})
		})).To(Succeed())

		var exposure feed.TimelineExposure
		var found bool
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			var err error
			exposure, found, err = store.GetTimeline(ctx, tx, "t1")
			return err
		})).To(Succeed())

		Expect(found).To(BeTrue())
		Expect(exposure.UserID).To(Equal("bob"))
		Expect(exposure.Items).To(HaveLen(1))
		Expect(exposure.Items[0].PostID).To(Equal("p1"))
	})

	It("lists timeline ids in creation order for ListTimelineIDs", func() {
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			if err := store.EnsureUser(ctx, tx, "bob", 0); err != nil {
				return err
			}
			for i := 0; i < 3; i++ {
				if err := store.CreateTimeline(ctx, tx, feed.TimelineExposure{
					TimelineID: fmt.Sprintf("t%d", i), UserID: "bob", Tick: int64(i), Algorithm: feed.AlgorithmNew, K: 1, Seed: 1,
				}); err != nil {
					return err
				}
			}
			return nil
		})).To(Succeed())

		var ids []string
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			var err error
			ids, err = store.ListTimelineIDs(ctx, tx)
			return err
		})).To(Succeed())
		Expect(ids).To(Equal([]string{"t0", "t1", "t2"}))
	})

	It("finds a previously recorded action by op_id", func() {
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			payload, err := feed.EncodePayload(feed.KindAction, feed.ActionPayload{
				OpID: "op-1", ActorID: "alice", ActionType: feed.ActionPost, Body: "hi", Status: feed.StatusAccepted,
			})
			if err != nil {
				return err
			}
			_, err = store.Append(ctx, tx, feed.Event{Tick: 1, Kind: feed.KindAction, Payload: payload, OpID: "op-1"})
			return err
		})).To(Succeed())

		var found bool
		var outcome feed.ActionPayload
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			var err error
			outcome, found, err = store.FindActionByOpID(ctx, tx, "op-1")
			return err
		})).To(Succeed())
		Expect(found).To(BeTrue())
		Expect(outcome.Status).To(Equal(feed.StatusAccepted))
	})

	It("truncates projections without touching the event log", func() {
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			if err := store.EnsureUser(ctx, tx, "alice", 0); err != nil {
				return err
			}
			if err := store.CreatePost(ctx, tx, feed.Post{PostID: "p1", AuthorID: "alice", Body: "hi", CreatedTick: 0}); err != nil {
				return err
			}
			payload, err := feed.EncodePayload(feed.KindAdvanceTick, feed.AdvanceTickPayload{NewTick: 1})
			if err != nil {
				return err
			}
			_, err = store.Append(ctx, tx, feed.Event{Tick: 1, Kind: feed.KindAdvanceTick, Payload: payload})
			return err
		})).To(Succeed())

		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			return store.TruncateProjections(ctx, tx)
		})).To(Succeed())

		var posts []feed.Post
		Expect(store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
			var err error
			posts, err = store.ListPosts(ctx, tx)
			return err
		})).To(Succeed())
		Expect(posts).To(BeEmpty())

		it, err := store.Scan(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		defer it.Close()
		_, ok, err := it.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue(), "events must survive TruncateProjections")
	})
})
