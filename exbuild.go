// Package exbuild builds the example artifact by shelling out to the Dart
// compiler and reporting how long it took.
package exbuild

// Version is the exbuild release version.
const Version = "0.1.0"
