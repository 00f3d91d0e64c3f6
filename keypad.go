package tapbank

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MaxKeypadDigits caps keypad entry at 999,999,999.
const MaxKeypadDigits = 9

var keypadPrinter = message.NewPrinter(language.English)

// Keypad is the numeric entry buffer front-ends feed into EnterAmount.
type Keypad struct {
	digits string
}

// Press appends a digit. Leading zeros are dropped and input past MaxKeypadDigits is
// ignored.
func (k *Keypad) Press(digit rune) bool {
	if digit < '0' || digit > '9' {
		return false
	}
	if len(k.digits) >= MaxKeypadDigits {
		return false
	}
	if k.digits == "" && digit == '0' {
		return true
	}
	k.digits += string(digit)
	return true
}

func (k *Keypad) Backspace() {
	if len(k.digits) > 0 {
		k.digits = k.digits[:len(k.digits)-1]
	}
}

func (k *Keypad) Clear() {
	k.digits = ""
}

// Value is the raw entry, "0" when empty.
func (k *Keypad) Value() string {
	if k.digits == "" {
		return "0"
	}
	return k.digits
}

// Display renders the entry with thousands separators.
func (k *Keypad) Display() string {
	v, err := strconv.ParseInt(k.Value(), 10, 64)
	if err != nil {
		return k.Value()
	}
	return keypadPrinter.Sprintf("%d", v)
}

// Submit returns the event for the current entry and clears the buffer.
func (k *Keypad) Submit() EnterAmount {
	ev := EnterAmount{Value: k.Value()}
	k.Clear()
	return ev
}
