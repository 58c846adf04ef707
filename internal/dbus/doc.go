// Package dbus talks to dnsconfd over D-Bus.
// It tracks ownership of the com.redhat.dnsconfd bus name (Locator) and
// owns the single outstanding com.redhat.dnsconfd.Manager.Update call
// (Dispatcher). Bus abstracts the connection so both can be driven from one
// event loop and exercised without a running bus.
package dbus
