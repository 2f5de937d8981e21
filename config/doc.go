// 版权所有 2026 DataFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package config provides configuration loading for DataFlow with layered
// precedence: built-in defaults, then an optional YAML file, then environment
// variables prefixed with DATAFLOW.
package config
