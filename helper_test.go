package folio

// TWD is a helper for tests to create Taiwan dollar money from const
func TWD(v float64) Money { return M(v, "TWD") }

// USD is a helper for tests to create US dollar money from const
func USD(v float64) Money { return M(v, "USD") }

// SGD is a helper for tests to create Singapore dollar money from const
func SGD(v float64) Money { return M(v, "SGD") }

// NO is a helper for tests to create money with no currency set
func NO(v float64) Money { return M(v, "") }
