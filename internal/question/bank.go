package question

// curated is walked in order for the first question not used yet.
var curated = []string{
	"What is encapsulation in object-oriented programming?",
	"How does a StringBuilder differ from an immutable string?",
	"What roles do primary keys and foreign keys play in a relational database?",
	"What distinguishes the HTTP GET method from POST?",
	"How does an inversion-of-control container manage object lifecycles?",
	"What is the main difference between a stack and a queue?",
	"How does a database index speed up queries?",
	"What is a closure in JavaScript?",
	"Which data types does Redis offer and where is each one useful?",
	"What characterises agile software development?",
	"What are the four layers of the TCP/IP model?",
	"How are file permissions represented on Linux?",
	"What core advantage do containers have over virtual machines?",
	"What is service discovery in a microservice architecture?",
	"How does reactive data binding work in a front-end framework?",
}

// extra is cycled by round once every curated question has been used.
var extra = []string{
	"How does dependency injection decouple components?",
	"Which transaction isolation levels does SQL define?",
	"Which mechanisms synchronise threads in concurrent programs?",
	"In what order are component lifecycle hooks called?",
	"How is the Redis string type implemented internally?",
}

// failover answers a failed or empty generation call, indexed by round.
var failover = []string{
	"What is the core idea behind framework auto-configuration?",
	"Why are B+ tree indexes preferred over hash indexes for range queries?",
	"How does the mark-and-sweep garbage collection algorithm work?",
	"What is the difference between snapshot and append-only persistence?",
	"How is aspect-oriented programming implemented with proxies?",
	"What separates idempotent and non-idempotent HTTP methods?",
	"What do the four ACID properties of a transaction guarantee?",
	"What does a mutual exclusion lock guarantee to concurrent code?",
	"How does change tracking trigger a re-render in a UI framework?",
	"What isolation does a container get from kernel namespaces?",
	"What are the time and space complexities of quicksort?",
	"How can a singleton be made thread-safe?",
	"Why does a red-black tree stay balanced better than a plain binary search tree?",
	"What does each step of the TCP three-way handshake achieve?",
	"How do circuit breaking and graceful degradation differ?",
}

// DefaultQuestion returns the first curated question not in used, cycling the extra
// list by round when all of them have been asked.
func DefaultQuestion(round int, used []string) string {
	seen := make(map[string]struct{}, len(used))
	for _, q := range used {
		seen[q] = struct{}{}
	}

	for _, q := range curated {
		if _, ok := seen[q]; !ok {
			return q
		}
	}

	return extra[index(round, len(extra))]
}

// FailoverQuestion is used when the oracle cannot produce a question for round.
func FailoverQuestion(round int) string {
	return failover[index(round, len(failover))]
}

func index(round, n int) int {
	i := (round - 1) % n
	if i < 0 {
		i += n
	}
	return i
}
