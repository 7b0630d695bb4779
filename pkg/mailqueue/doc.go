// Package mailqueue provides a durable outbox for transactional email with
// bounded exponential-backoff retries.
//
// Business flows never talk to an email provider directly. They record an
// Item through the Enqueuer and return; the Scheduler later picks up ready
// items and hands them to the Dispatcher, which performs the actual send
// through a per-kind SendFunc.
//
// The package is organised around four components:
//
//   - Enqueuer: validates input and inserts a pending item
//   - Dispatcher: claims an item, sends it, and records sent, retry or failed
//   - Scheduler: polls for ready items on a fixed interval
//   - Recoverer: returns items abandoned in processing back to pending
//
// Admin exposes aggregate counts, the list of failed items and the manual
// reset that gives a failed item a fresh retry budget.
//
// # Lifecycle
//
//	pending ──claim──▶ processing ──ok──▶ sent
//	   ▲                   │
//	   └──── retry ────────┤
//	                       └──exhausted──▶ failed ──reset──▶ pending
//
// Every persisted transition is a conditional write keyed on the expected
// current status, so two pollers racing on the same item cannot both send it.
//
// # Retries
//
// After the n-th failure an item waits Base*2^n before it becomes ready again.
// With the default one-minute base that is 2, 4 and 8 minutes. Once RetryCount
// reaches MaxRetries the item is marked failed and stays there until reset.
//
// # Usage
//
//	store := mailqueue.NewMemoryStorage()
//	cfg := mailqueue.DefaultConfig()
//
//	enq, _ := mailqueue.NewEnqueuer(store, cfg)
//	disp, _ := mailqueue.NewDispatcher(store, cfg)
//	disp.Register(mailqueue.KindWelcome, func(ctx context.Context, msg mailqueue.Message) error {
//		return sender.SendEmail(ctx, ...)
//	})
//	sched, _ := mailqueue.NewScheduler(store, disp, cfg)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(sched.Run(ctx))
//
//	_, _ = enq.Enqueue(ctx, mailqueue.KindWelcome, "jane@example.com", "Jane")
//
// Persistent backends live in the pgstore, redisstore and mongostore subpackages.
package mailqueue
