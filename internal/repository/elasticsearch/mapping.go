package elasticsearch

// indexMapping stores the product JSON as-is. Filterable fields are keywords
// with a lowercase normalizer so term filters match case-insensitively.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "normalizer": {
        "lowercase_normalizer": {
          "type": "custom",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "slug":        { "type": "keyword" },
      "title":       { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "description": { "type": "text" },
      "price":       { "type": "long" },
      "collection":  { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "images":      { "type": "keyword", "index": false },
      "in_stock":    { "type": "boolean" },
      "sizes":       { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "colors":      { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "tags":        { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "fabric":      { "type": "text" },
      "care":        { "type": "text" },
      "shipping":    { "type": "text" },
      "featured":    { "type": "boolean" },
      "popularity":  { "type": "long" },
      "created_at":  { "type": "date" }
    }
  }
}`
