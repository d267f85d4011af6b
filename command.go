package device

// commandKind names a Command variant, used for admission/overload
// bookkeeping and structured logging. It carries no dispatch behavior
// itself — that lives in Command.dispatch.
type commandKind string

const (
	cmdPut            commandKind = "Put"
	cmdGet            commandKind = "Get"
	cmdHead           commandKind = "Head"
	cmdDelete         commandKind = "Delete"
	cmdDeleteRange    commandKind = "DeleteRange"
	cmdList           commandKind = "List"
	cmdListRange      commandKind = "ListRange"
	cmdUsageRange     commandKind = "UsageRange"
	cmdJournalSync    commandKind = "JournalSync"
	cmdWaitForRunning commandKind = "WaitForRunning"
	cmdStop           commandKind = "Stop"
)

// Command is one unit of work submitted through a RequestHandle. It
// carries its own dispatch closure rather than a tagged union of
// arguments, so each terminal handle method can build a fully-typed
// Command/Future pair without a central type switch (see command.go's
// newCommand helper and handle.go's terminal methods).
type Command struct {
	kind        commandKind
	deadline    Deadline
	prioritized bool
	// waitForRunning, when set, tells the worker's drain phase to hold
	// this command in the inbox (neither admitting nor rejecting it)
	// until the device reaches StatusRunning. Stop always sets this
	// implicitly: a stop issued during startup is deferred until the
	// worker can see it.
	waitForRunning bool

	// sequence is assigned by the worker at insertion into the
	// DeadlineQueue; it breaks ties between equal deadlines in FIFO
	// order.
	sequence uint64

	// dispatch runs on the worker goroutine with exclusive access to
	// storage, then resolves the command's future exactly once.
	dispatch func(w *Worker)

	// fail resolves the command's future with an error, without ever
	// touching storage. Used for admission-time refusal and for
	// resolving drained-but-unexecuted commands during shutdown.
	fail func(err error)

	// resultErr/resultBytes are populated by dispatch/fail for the
	// worker's metrics bookkeeping, which only sees a *Command, not its
	// generic Future[T].
	resultErr   error
	resultBytes uint64
}

// newCommand builds a Command/Future pair for a terminal operation whose
// result type is T. exec runs against the worker's storage; if it
// succeeds and journalSync was requested, the worker flushes the journal
// before the future resolves. bytesOf extracts the byte count to report
// to Metrics from a successful result (nil for operations that move no
// payload, e.g. Delete/Head).
func newCommand[T any](kind commandKind, deadline Deadline, prioritized, journalSync bool, exec func(s Storage) (T, error), bytesOf func(T) uint64) (*Command, *Future[T]) {
	fut := newFuture[T]()
	cmd := &Command{
		kind:        kind,
		deadline:    deadline,
		prioritized: prioritized,
	}
	cmd.dispatch = func(w *Worker) {
		val, err := exec(w.storage)
		if err == nil && journalSync {
			if jerr := w.storage.JournalSync(); jerr != nil {
				err = WrapError(string(kind), jerr)
			}
		}
		cmd.resultErr = err
		if err == nil && bytesOf != nil {
			cmd.resultBytes = bytesOf(val)
		}
		fut.resolve(val, err)
	}
	cmd.fail = func(err error) {
		var zero T
		cmd.resultErr = err
		fut.resolve(zero, err)
	}
	return cmd, fut
}
