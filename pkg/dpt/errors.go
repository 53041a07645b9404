package dpt

import "errors"

// DPT errors.
var (
	// ErrConversion is returned when a value cannot be represented by a DPT,
	// or when a decoded value falls outside the DPT's range.
	ErrConversion = errors.New("dpt: conversion error")

	// ErrCouldNotParseTelegram is returned when a payload has the wrong kind
	// or length for the DPT it is decoded with.
	ErrCouldNotParseTelegram = errors.New("dpt: could not parse telegram")
)
