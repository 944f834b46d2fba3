// Package seed loads demo customers, projects, documents and knowledge base entries from YAML.
package seed
