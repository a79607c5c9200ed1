// Package projects lists, converts, and updates GitHub Projects (v2) items and synchronises
// repository issues into a project.
package projects
