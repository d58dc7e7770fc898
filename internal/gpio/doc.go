// Package gpio abstracts the digital output driven by the behavior
// task. The Linux implementation uses the character-device GPIO API;
// tests use the recording fake.
package gpio
