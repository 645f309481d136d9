package metrics

import "time"

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheName string) {
	Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheName string) {
	Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheOperation records the latency of a cache read or write
func RecordCacheOperation(operation, cacheName string, duration time.Duration) {
	m := Get()
	m.CacheOperationsTotal.WithLabelValues(operation, cacheName).Inc()
	m.CacheOperationDuration.WithLabelValues(operation, cacheName).Observe(duration.Seconds())
}

// RecordDatabaseQuery records a database operation
func RecordDatabaseQuery(queryType, table string, duration time.Duration, err error) {
	m := Get()
	m.DatabaseQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
	m.DatabaseQueriesTotal.WithLabelValues(queryType, table, status(err)).Inc()
}

// SetDatabaseConnections records the open connection count
func SetDatabaseConnections(database string, count int) {
	Get().DatabaseConnectionsOpen.WithLabelValues(database).Set(float64(count))
}

// RecordRedisOperation records a redis command
func RecordRedisOperation(operation string, duration time.Duration, err error) {
	m := Get()
	m.RedisOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.RedisOperationsTotal.WithLabelValues(operation, status(err)).Inc()
}

// RecordFeedGeneration records how long a feed page took to build
func RecordFeedGeneration(feedType string, duration time.Duration) {
	Get().FeedGenerationTime.WithLabelValues(feedType).Observe(duration.Seconds())
}

// RecordSearch records a search request
func RecordSearch(index, operation string, duration time.Duration, err error) {
	m := Get()
	m.SearchQueriesTotal.WithLabelValues(index, status(err)).Inc()
	m.SearchQueryDuration.WithLabelValues(index, operation).Observe(duration.Seconds())
}
