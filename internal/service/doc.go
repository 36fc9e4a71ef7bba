// Package service holds the application services that sit between the HTTP
// layer and the stores: task status transitions and admin reassignment.
package service
