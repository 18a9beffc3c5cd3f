// Package openai implements the ai service interfaces against
// OpenAI-compatible HTTP APIs via langchaingo. It works with hosted
// OpenAI as well as local servers such as Ollama, LocalAI and vLLM.
package openai
